package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumen-studio/aperture_api/dto"
)

type AuthServiceInterface interface {
	Register(req dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(req dto.LoginRequest, clientIP string) (*dto.LoginResponse, error)
	Logout(accessToken string) error
	GetProfile(userID string) (*dto.UserProfileResponse, error)
	RequiredAuth() fiber.Handler
	RequireAdmin() fiber.Handler
}

type JWTServiceInterface interface {
	ExtractTokenFromHeader(authHeader string) (string, error)
}

type GenerationServiceInterface interface {
	Generate(userID string, req dto.GenerateRequest) (*dto.GenerationResponse, error)
	Get(userID, generationID string, isAdmin bool) (*dto.GenerationResponse, error)
	List(userID string, req dto.GenerationListRequest) (*dto.GenerationListResponse, error)
	Cancel(userID, generationID string, isAdmin bool) (*dto.CancelGenerationResponse, error)
	Delete(userID, generationID string, isAdmin bool) error
}

type CreditServiceInterface interface {
	GetBalance(userID string) (*dto.CreditBalanceResponse, error)
	GrantCredits(req dto.AddCreditsRequest) (*dto.CreditBalanceResponse, error)
}

type RateLimitServiceInterface interface {
	ClearAttempts(identifier string)
}
