package dto

import "time"

// RateLimitInfo reports the outcome of a limiter check. ResetTime is only set
// when the identifier is blocked.
type RateLimitInfo struct {
	Allowed           bool       `json:"allowed"`
	RemainingAttempts int        `json:"remaining_attempts"`
	ResetTime         *time.Time `json:"reset_time,omitempty"`
}
