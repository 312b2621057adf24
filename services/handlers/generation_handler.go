package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-studio/aperture_api/dto"
	"github.com/lumen-studio/aperture_api/model"
	"github.com/lumen-studio/aperture_api/shared"
)

type GenerationHandler struct {
	generationSvc GenerationServiceInterface
}

func NewGenerationHandler(generationSvc GenerationServiceInterface) *GenerationHandler {
	return &GenerationHandler{
		generationSvc: generationSvc,
	}
}

func requestIdentity(c *fiber.Ctx) (string, bool) {
	userID, _ := c.Locals(shared.UserID).(string)
	isAdmin, _ := c.Locals(shared.IsAdmin).(bool)
	return userID, isAdmin
}

// @Summary Generate an image
// @Description Charge credits and start an asynchronous image generation. Returns once the job is processing; poll the job for the result.
// @Tags generations
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Param generateRequest body dto.GenerateRequest true "Prompt and aspect ratio"
// @Success 201 {object} shared.Response{data=dto.GenerationResponse}
// @Router /api/v1/generations [post]
func (h *GenerationHandler) Generate(c *fiber.Ctx) error {
	var req dto.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	userID, _ := requestIdentity(c)

	resp, err := h.generationSvc.Generate(userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusCreated, "Generation started", resp)
}

// @Summary Get a generation
// @Description Current state of one generation, including result URL once succeeded
// @Tags generations
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Param generationId path string true "Generation ID"
// @Success 200 {object} shared.Response{data=dto.GenerationResponse}
// @Router /api/v1/generations/{generationId} [get]
func (h *GenerationHandler) Get(c *fiber.Ctx) error {
	userID, isAdmin := requestIdentity(c)

	resp, err := h.generationSvc.Get(userID, c.Params("generationId"), isAdmin)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Success", resp)
}

// @Summary List generations
// @Description Generation history for the current user, newest first
// @Tags generations
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} shared.Response{data=dto.GenerationListResponse}
// @Router /api/v1/generations [get]
func (h *GenerationHandler) List(c *fiber.Ctx) error {
	req := dto.GenerationListRequest{
		Status: c.Query("status"),
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
	}

	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return shared.NewBadRequestError(err, "start_date must be RFC3339")
		}
		req.StartDate = &parsed
	}
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return shared.NewBadRequestError(err, "end_date must be RFC3339")
		}
		req.EndDate = &parsed
	}

	userID, _ := requestIdentity(c)

	resp, err := h.generationSvc.List(userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Success", resp)
}

// @Summary Cancel a generation
// @Description Best-effort cancel of a running generation; the local record becomes cancelled either way. Terminal or unsubmitted jobs are a reported no-op.
// @Tags generations
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Param generationId path string true "Generation ID"
// @Success 200 {object} shared.Response{data=dto.CancelGenerationResponse}
// @Router /api/v1/generations/{generationId}/cancel [post]
func (h *GenerationHandler) Cancel(c *fiber.Ctx) error {
	userID, isAdmin := requestIdentity(c)

	resp, err := h.generationSvc.Cancel(userID, c.Params("generationId"), isAdmin)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Success", resp)
}

// @Summary Delete a generation
// @Description Remove a generation record and its stored asset
// @Tags generations
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Param generationId path string true "Generation ID"
// @Success 200 {object} shared.Response{data=string}
// @Router /api/v1/generations/{generationId} [delete]
func (h *GenerationHandler) Delete(c *fiber.Ctx) error {
	userID, isAdmin := requestIdentity(c)

	if err := h.generationSvc.Delete(userID, c.Params("generationId"), isAdmin); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Generation deleted successfully", "deleted")
}

// @Summary List aspect ratios
// @Description The fixed aspect ratio table with pixel dimensions and credit costs
// @Tags generations
// @Produce json
// @Success 200 {object} shared.Response{data=[]model.AspectRatioOption}
// @Router /api/v1/aspect-ratios [get]
func (h *GenerationHandler) AspectRatios(c *fiber.Ctx) error {
	return shared.ResponseJSON(c, http.StatusOK, "Success", model.AspectRatioOptions)
}
