package services

import (
	"context"
	"errors"
	"strings"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/lumen-studio/aperture_api/dto"
	"github.com/lumen-studio/aperture_api/model"
	"github.com/lumen-studio/aperture_api/shared"
)

type AuthService struct {
	appContext.DefaultService

	sqlSvc       *PostgresService
	jwtSvc       *JWTService
	redisSvc     *RedisService
	rateLimitSvc *RateLimitService

	defaultCredits float64
}

const AUTH_SVC = "auth_svc"

const tokenBlacklistPrefix = "token_blacklist:"

func (svc AuthService) Id() string {
	return AUTH_SVC
}

func (svc *AuthService) Configure(ctx *appContext.Context) error {
	svc.defaultCredits = 10
	return svc.DefaultService.Configure(ctx)
}

func (svc *AuthService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.jwtSvc = svc.Service(JWT_SVC).(*JWTService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	return nil
}

// ==================== ACCOUNT OPERATIONS ====================

func (svc *AuthService) Register(req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	email := sanitizeEmail(req.Email)

	if _, err := svc.sqlSvc.GetUserByEmail(email); err == nil {
		return nil, shared.NewConflictError(nil, "Email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svc.sqlSvc.HandleError(err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.NewInternalError(err)
	}

	user := &model.User{
		Email:    email,
		Username: req.Username,
		Password: string(hashed),
		Credits:  svc.defaultCredits,
	}

	if err := svc.sqlSvc.CreateUser(user); err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	log.WithFields(log.Fields{
		"user_id": user.ID,
		"email":   email,
	}).Info("User registered")

	return &dto.RegisterResponse{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Credits:  user.Credits,
	}, nil
}

// Login authenticates a user. Failed attempts feed the rate limiter keyed by
// sanitized email; a successful login clears the identifier.
func (svc *AuthService) Login(req dto.LoginRequest, clientIP string) (*dto.LoginResponse, error) {
	email := sanitizeEmail(req.Email)

	limit := svc.rateLimitSvc.Check(email)
	if !limit.Allowed {
		resetTime := "30 minutes"
		if limit.ResetTime != nil {
			resetTime = svc.rateLimitSvc.FormatResetTime(*limit.ResetTime)
		}
		return nil, shared.NewRateLimitError("Too many failed login attempts. Please try again in "+resetTime, resetTime)
	}

	// The Check above already counted this attempt; failures below simply
	// leave the counter in place while success clears it.
	user, err := svc.sqlSvc.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewUnauthorizedError(nil, "Invalid email or password")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.WithFields(log.Fields{
			"email":     email,
			"client_ip": clientIP,
		}).Warn("Failed login attempt")
		return nil, shared.NewUnauthorizedError(nil, "Invalid email or password")
	}

	svc.rateLimitSvc.ClearAttempts(email)

	if err := svc.sqlSvc.UpdateLastLogin(user.ID); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Failed to update last login")
	}

	tokens, err := svc.jwtSvc.GenerateTokenPair(user.ID, user.IsAdmin)
	if err != nil {
		return nil, shared.NewInternalError(err)
	}

	return &dto.LoginResponse{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		Tokens:   *tokens,
	}, nil
}

// Logout blacklists the presented token for the remainder of its lifetime.
func (svc *AuthService) Logout(accessToken string) error {
	if err := svc.redisSvc.Set(svc.redisCtx(), tokenBlacklistPrefix+accessToken, "revoked", svc.jwtSvc.AccessTokenDuration); err != nil {
		return shared.NewInternalError(err)
	}
	return nil
}

func (svc *AuthService) GetProfile(userID string) (*dto.UserProfileResponse, error) {
	user, err := svc.sqlSvc.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("User not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	return &dto.UserProfileResponse{
		UserID:           user.ID,
		Email:            user.Email,
		Username:         user.Username,
		IsAdmin:          user.IsAdmin,
		Credits:          user.Credits,
		TotalGenerations: user.TotalGenerations,
		LastGenerationAt: user.LastGenerationAt,
		CreatedAt:        user.CreatedAt,
	}, nil
}

// ==================== MIDDLEWARE ====================

func (svc *AuthService) RequiredAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := svc.jwtSvc.ExtractTokenFromHeader(c.Get("Authorization"))
		if err != nil {
			return shared.ResponseUnauthorized(c)
		}

		claims, err := svc.jwtSvc.VerifyJWTToken(token)
		if err != nil {
			return shared.ResponseUnauthorized(c)
		}

		revoked, err := svc.redisSvc.Exists(svc.redisCtx(), tokenBlacklistPrefix+token)
		if err != nil {
			log.WithError(err).Warn("Token blacklist check failed")
		} else if revoked {
			return shared.ResponseUnauthorized(c)
		}

		c.Locals(shared.UserID, claims.UserID)
		c.Locals(shared.IsAdmin, claims.IsAdmin)
		return c.Next()
	}
}

func (svc *AuthService) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isAdmin, ok := c.Locals(shared.IsAdmin).(bool)
		if !ok || !isAdmin {
			return shared.ResponseForbidden(c)
		}
		return c.Next()
	}
}

func (svc *AuthService) redisCtx() context.Context {
	return context.Background()
}

func sanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
