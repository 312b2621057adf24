package dto

import (
	"time"

	"github.com/lumen-studio/aperture_api/model"
)

type GenerateRequest struct {
	Prompt      string `json:"prompt" validate:"required,min=3,max=500,prompt_chars"`
	AspectRatio string `json:"aspect_ratio" validate:"required"`
}

func (r GenerateRequest) Validate() error {
	return validate.Struct(r)
}

type GenerationResponse struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Prompt       string     `json:"prompt"`
	AspectRatio  string     `json:"aspect_ratio"`
	ModelVersion string     `json:"model_version"`
	ImageURL     *string    `json:"image_url,omitempty"`
	PredictionID *string    `json:"prediction_id,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CostCredits  float64    `json:"cost_credits"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func NewGenerationResponse(g *model.Generation) GenerationResponse {
	return GenerationResponse{
		ID:           g.ID,
		UserID:       g.UserID,
		Prompt:       g.Prompt,
		AspectRatio:  g.AspectRatio,
		ModelVersion: g.ModelVersion,
		ImageURL:     g.ImageURL,
		PredictionID: g.PredictionID,
		Status:       g.Status,
		ErrorMessage: g.ErrorMessage,
		CostCredits:  g.CostCredits,
		CreatedAt:    g.CreatedAt,
		CompletedAt:  g.CompletedAt,
	}
}

type GenerationListRequest struct {
	Status    string     `json:"status" query:"status"`
	StartDate *time.Time `json:"start_date" query:"start_date"`
	EndDate   *time.Time `json:"end_date" query:"end_date"`
	Limit     int        `json:"limit" query:"limit"`
	Offset    int        `json:"offset" query:"offset"`
}

type GenerationListResponse struct {
	Generations []GenerationResponse `json:"generations"`
	Total       int64                `json:"total"`
}

type CancelGenerationResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Cancelled bool   `json:"cancelled"`
	Reason    string `json:"reason,omitempty"`
}

type CreditBalanceResponse struct {
	Credits          float64    `json:"credits"`
	IsAdmin          bool       `json:"is_admin"`
	TotalGenerations int        `json:"total_generations"`
	LastGenerationAt *time.Time `json:"last_generation_at,omitempty"`
}

type AddCreditsRequest struct {
	UserID string  `json:"user_id" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (r AddCreditsRequest) Validate() error {
	return validate.Struct(r)
}
