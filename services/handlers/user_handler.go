package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-studio/aperture_api/shared"
)

type UserHandler struct {
	creditSvc CreditServiceInterface
}

func NewUserHandler(creditSvc CreditServiceInterface) *UserHandler {
	return &UserHandler{
		creditSvc: creditSvc,
	}
}

// @Summary Get credit balance
// @Description Current credit balance and generation counters for the authenticated user
// @Tags user
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Success 200 {object} shared.Response{data=dto.CreditBalanceResponse}
// @Router /api/v1/me/credits [get]
func (h *UserHandler) GetCredits(c *fiber.Ctx) error {
	userID, _ := requestIdentity(c)

	resp, err := h.creditSvc.GetBalance(userID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Success", resp)
}
