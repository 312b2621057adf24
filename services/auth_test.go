package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-studio/aperture_api/dto"
	"github.com/lumen-studio/aperture_api/shared"
)

func newTestAuth(t *testing.T) (*AuthService, *PostgresService) {
	t.Helper()

	sqlSvc := newTestSQL(t)
	svc := &AuthService{
		sqlSvc:         sqlSvc,
		jwtSvc:         &JWTService{AccessTokenDuration: time.Hour, jwtSecretKey: "test-secret"},
		rateLimitSvc:   newTestRateLimiter(time.Now),
		defaultCredits: 10,
	}
	return svc, sqlSvc
}

func TestRegisterGrantsDefaultCredits(t *testing.T) {
	svc, _ := newTestAuth(t)

	resp, err := svc.Register(dto.RegisterRequest{
		Email:           "Fox@Example.com",
		Username:        "foxfan",
		Password:        "Sup3rSecret!",
		ConfirmPassword: "Sup3rSecret!",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.UserID)
	assert.Equal(t, "fox@example.com", resp.Email)
	assert.InDelta(t, 10, resp.Credits, 1e-9)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuth(t)

	req := dto.RegisterRequest{
		Email:           "fox@example.com",
		Username:        "foxfan",
		Password:        "Sup3rSecret!",
		ConfirmPassword: "Sup3rSecret!",
	}
	_, err := svc.Register(req)
	require.NoError(t, err)

	req.Username = "otherfox"
	_, err = svc.Register(req)
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)
}

func TestLoginSuccess(t *testing.T) {
	svc, sqlSvc := newTestAuth(t)

	_, err := svc.Register(dto.RegisterRequest{
		Email:           "fox@example.com",
		Username:        "foxfan",
		Password:        "Sup3rSecret!",
		ConfirmPassword: "Sup3rSecret!",
	})
	require.NoError(t, err)

	resp, err := svc.Login(dto.LoginRequest{Email: "Fox@Example.com ", Password: "Sup3rSecret!"}, "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.False(t, resp.IsAdmin)

	claims, err := svc.jwtSvc.VerifyJWTToken(resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, claims.UserID)

	user, err := sqlSvc.GetUserByID(resp.UserID)
	require.NoError(t, err)
	assert.NotNil(t, user.LastLoginAt)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestAuth(t)

	_, err := svc.Register(dto.RegisterRequest{
		Email:           "fox@example.com",
		Username:        "foxfan",
		Password:        "Sup3rSecret!",
		ConfirmPassword: "Sup3rSecret!",
	})
	require.NoError(t, err)

	_, err = svc.Login(dto.LoginRequest{Email: "fox@example.com", Password: "wrong"}, "127.0.0.1")
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.StatusCode)
	assert.Equal(t, "Invalid email or password", appErr.Message)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	svc, _ := newTestAuth(t)

	_, err := svc.Login(dto.LoginRequest{Email: "nobody@example.com", Password: "whatever"}, "127.0.0.1")
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.StatusCode)
	assert.Equal(t, "Invalid email or password", appErr.Message)
}

func TestLoginRateLimited(t *testing.T) {
	svc, _ := newTestAuth(t)

	_, err := svc.Register(dto.RegisterRequest{
		Email:           "fox@example.com",
		Username:        "foxfan",
		Password:        "Sup3rSecret!",
		ConfirmPassword: "Sup3rSecret!",
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = svc.Login(dto.LoginRequest{Email: "fox@example.com", Password: "wrong"}, "127.0.0.1")
		require.Error(t, err)
		appErr, ok := shared.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, 401, appErr.StatusCode, "attempt %d", i+1)
	}

	// The sixth attempt is refused before credentials are even checked,
	// correct password included.
	_, err = svc.Login(dto.LoginRequest{Email: "fox@example.com", Password: "Sup3rSecret!"}, "127.0.0.1")
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 429, appErr.StatusCode)
	assert.Equal(t, shared.CodeRateLimitExceeded, appErr.Code)
	assert.Contains(t, appErr.Message, "30 minutes")

	// Clearing the identifier restores access.
	svc.rateLimitSvc.ClearAttempts("fox@example.com")
	_, err = svc.Login(dto.LoginRequest{Email: "fox@example.com", Password: "Sup3rSecret!"}, "127.0.0.1")
	require.NoError(t, err)
}

func TestGetProfile(t *testing.T) {
	svc, _ := newTestAuth(t)

	reg, err := svc.Register(dto.RegisterRequest{
		Email:           "fox@example.com",
		Username:        "foxfan",
		Password:        "Sup3rSecret!",
		ConfirmPassword: "Sup3rSecret!",
	})
	require.NoError(t, err)

	profile, err := svc.GetProfile(reg.UserID)
	require.NoError(t, err)
	assert.Equal(t, "fox@example.com", profile.Email)
	assert.Equal(t, "foxfan", profile.Username)
	assert.InDelta(t, 10, profile.Credits, 1e-9)

	_, err = svc.GetProfile("no-such-user")
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.StatusCode)
}
