package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-studio/aperture_api/dto"
	"github.com/lumen-studio/aperture_api/shared"
)

type AdminHandler struct {
	creditSvc    CreditServiceInterface
	rateLimitSvc RateLimitServiceInterface
}

func NewAdminHandler(creditSvc CreditServiceInterface, rateLimitSvc RateLimitServiceInterface) *AdminHandler {
	return &AdminHandler{
		creditSvc:    creditSvc,
		rateLimitSvc: rateLimitSvc,
	}
}

// @Summary Grant credits
// @Description Add credits to a user account
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Admin Bearer Token" default(Bearer <admin_token>)
// @Param addCreditsRequest body dto.AddCreditsRequest true "Target user and amount"
// @Success 200 {object} shared.Response{data=dto.CreditBalanceResponse}
// @Router /api/v1/admin/credits [post]
func (h *AdminHandler) GrantCredits(c *fiber.Ctx) error {
	var req dto.AddCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.creditSvc.GrantCredits(req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Credits granted", resp)
}

// @Summary Reset login rate limit
// @Description Clear failed login attempts and any active block for an identifier
// @Tags admin
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Admin Bearer Token" default(Bearer <admin_token>)
// @Param identifier path string true "Rate limit identifier (email)"
// @Success 200 {object} shared.Response{data=string}
// @Router /api/v1/admin/rate-limits/{identifier} [delete]
func (h *AdminHandler) ResetRateLimit(c *fiber.Ctx) error {
	identifier := c.Params("identifier")
	if identifier == "" {
		return shared.NewBadRequestError(nil, "Identifier is required")
	}

	h.rateLimitSvc.ClearAttempts(identifier)

	return shared.ResponseJSON(c, http.StatusOK, "Rate limit cleared", identifier)
}
