package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequestValidation(t *testing.T) {
	valid := GenerateRequest{Prompt: "a red fox in snow", AspectRatio: "1:1"}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name string
		req  GenerateRequest
	}{
		{"missing prompt", GenerateRequest{AspectRatio: "16:9"}},
		{"prompt too short", GenerateRequest{Prompt: "hi", AspectRatio: "16:9"}},
		{"prompt too long", GenerateRequest{Prompt: strings.Repeat("a", 501), AspectRatio: "16:9"}},
		{"prompt with unsupported characters", GenerateRequest{Prompt: "a fox <script>", AspectRatio: "16:9"}},
		{"missing aspect ratio", GenerateRequest{Prompt: "a red fox in snow"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.req.Validate())
		})
	}
}

func TestGenerateRequestAllowsPunctuation(t *testing.T) {
	req := GenerateRequest{
		Prompt:      `A fox (vulpes), "startled" - mid-leap! Snow falling, right?`,
		AspectRatio: "16:9",
	}
	assert.NoError(t, req.Validate())
}

func TestRegisterRequestValidation(t *testing.T) {
	valid := RegisterRequest{
		Email:           "fox@example.com",
		Username:        "foxfan42",
		Password:        "Sup3rSecret!",
		ConfirmPassword: "Sup3rSecret!",
	}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"invalid email", func(r *RegisterRequest) { r.Email = "not-an-email" }},
		{"username too short", func(r *RegisterRequest) { r.Username = "ab" }},
		{"username not alphanumeric", func(r *RegisterRequest) { r.Username = "fox fan!" }},
		{"password too short", func(r *RegisterRequest) { r.Password, r.ConfirmPassword = "Ab1!", "Ab1!" }},
		{"password without uppercase", func(r *RegisterRequest) { r.Password, r.ConfirmPassword = "sup3rsecret!", "sup3rsecret!" }},
		{"password without special", func(r *RegisterRequest) { r.Password, r.ConfirmPassword = "Sup3rSecret", "Sup3rSecret" }},
		{"confirmation mismatch", func(r *RegisterRequest) { r.ConfirmPassword = "Different1!" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			assert.Error(t, req.Validate())
		})
	}
}

func TestFormatValidationErrors(t *testing.T) {
	err := GenerateRequest{Prompt: "hi", AspectRatio: ""}.Validate()
	require.Error(t, err)

	resp := CreateValidationErrorResponse(err)
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "Validation failed", resp.Message)
	require.Len(t, resp.Errors, 2)

	fields := []string{resp.Errors[0].Field, resp.Errors[1].Field}
	assert.Contains(t, fields, "Prompt")
	assert.Contains(t, fields, "AspectRatio")
}
