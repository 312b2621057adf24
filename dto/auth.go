package dto

import "time"

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Username        string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Password        string `json:"password" validate:"required,strong_password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

func (r RegisterRequest) Validate() error {
	return validate.Struct(r)
}

type RegisterResponse struct {
	UserID   string  `json:"user_id"`
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Credits  float64 `json:"credits"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r LoginRequest) Validate() error {
	return validate.Struct(r)
}

type TokenPair struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type LoginResponse struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin"`
	Tokens   TokenPair `json:"tokens"`
}

type UserProfileResponse struct {
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	IsAdmin          bool       `json:"is_admin"`
	Credits          float64    `json:"credits"`
	TotalGenerations int        `json:"total_generations"`
	LastGenerationAt *time.Time `json:"last_generation_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
