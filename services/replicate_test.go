package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-studio/aperture_api/shared"
)

func newTestReplicate(serverURL string) *ReplicateService {
	return &ReplicateService{
		token:      "test-token",
		baseURL:    serverURL,
		modelName:  "black-forest-labs/flux-pro",
		httpClient: &http.Client{Timeout: time.Second},
	}
}

func TestReplicateSubmit(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody submitRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pred-abc","status":"starting"}`))
	}))
	defer server.Close()

	svc := newTestReplicate(server.URL)

	prediction, err := svc.Submit(context.Background(), "a red fox in snow", "1:1")
	require.NoError(t, err)

	assert.Equal(t, "/models/black-forest-labs/flux-pro/predictions", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "a red fox in snow", gotBody.Input.Prompt)
	assert.Equal(t, "1:1", gotBody.Input.AspectRatio)
	assert.Equal(t, "png", gotBody.Input.OutputFormat)
	assert.Equal(t, 90, gotBody.Input.OutputQuality)

	assert.Equal(t, "pred-abc", prediction.ID)
	assert.Equal(t, ProviderStatusStarting, prediction.Status)
}

func TestReplicatePoll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/predictions/pred-abc", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pred-abc","status":"succeeded","output":["https://provider.example.com/out.png"]}`))
	}))
	defer server.Close()

	svc := newTestReplicate(server.URL)

	prediction, err := svc.Poll(context.Background(), "pred-abc")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatusSucceeded, prediction.Status)
	assert.Equal(t, "https://provider.example.com/out.png", prediction.FirstOutput())
}

func TestReplicateCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predictions/pred-abc/cancel", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pred-abc","status":"canceled"}`))
	}))
	defer server.Close()

	svc := newTestReplicate(server.URL)

	prediction, err := svc.Cancel(context.Background(), "pred-abc")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatusCanceled, prediction.Status)
}

func TestReplicateAPIErrorDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token"}`))
	}))
	defer server.Close()

	svc := newTestReplicate(server.URL)

	_, err := svc.Poll(context.Background(), "pred-abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid token")
	assert.Contains(t, err.Error(), "401")
}

func TestPredictionFirstOutput(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   string
	}{
		{"absent", "", ""},
		{"single string", `"https://example.com/a.png"`, "https://example.com/a.png"},
		{"array", `["https://example.com/a.png","https://example.com/b.png"]`, "https://example.com/a.png"},
		{"empty array", `[]`, ""},
		{"unexpected shape", `{"nested":true}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Prediction{}
			if tc.output != "" {
				p.Output = json.RawMessage(tc.output)
			}
			assert.Equal(t, tc.want, p.FirstOutput())
		})
	}
}

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]string{
		"starting":   shared.StatusStarting,
		"processing": shared.StatusProcessing,
		"succeeded":  shared.StatusSucceeded,
		"failed":     shared.StatusFailed,
		"canceled":   shared.StatusCancelled,
		"queued":     shared.StatusStarting,
		"":           shared.StatusStarting,
	}

	for provider, want := range cases {
		assert.Equal(t, want, MapProviderStatus(provider), "provider status %q", provider)
	}
}
