package model

import "time"

// DefaultModelVersion is the tag recorded on each generation row.
const DefaultModelVersion = "runway-gen-4"

// Generation is one user-initiated image generation request and its lifecycle
// record. CostCredits is fixed at creation and never recalculated, whatever
// the eventual outcome.
type Generation struct {
	ID           string `json:"id" gorm:"primaryKey;type:text;not null"`
	UserID       string `json:"user_id" gorm:"not null;index"`
	Prompt       string `json:"prompt" gorm:"type:text;not null"`
	AspectRatio  string `json:"aspect_ratio" gorm:"not null;size:10"`
	ModelVersion string `json:"model_version" gorm:"not null;size:50"`

	PredictionID *string `json:"prediction_id,omitempty" gorm:"index"`
	Status       string  `json:"status" gorm:"not null;index;size:20"`
	ImageURL     *string `json:"image_url,omitempty" gorm:"type:text"`
	ErrorMessage *string `json:"error_message,omitempty" gorm:"type:text"`

	CostCredits float64 `json:"cost_credits" gorm:"not null"`

	CreatedAt   time.Time  `json:"created_at" gorm:"not null;index"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the generation has reached a state that permits
// no further status transitions.
func (g *Generation) IsTerminal() bool {
	switch g.Status {
	case "succeeded", "failed", "cancelled":
		return true
	}
	return false
}
