package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"

	"github.com/lumen-studio/aperture_api/model"
	"github.com/lumen-studio/aperture_api/shared"
)

// ReplicateService is the trusted intermediary in front of the image
// generation provider. The bearer token is read from the environment and
// never leaves this service; handlers and callers only see opaque prediction
// ids and mapped statuses.
type ReplicateService struct {
	appContext.DefaultService

	token      string
	baseURL    string
	modelName  string
	httpClient *http.Client
}

const REPLICATE_SVC = "replicate_svc"

const (
	ProviderStatusStarting   = "starting"
	ProviderStatusProcessing = "processing"
	ProviderStatusSucceeded  = "succeeded"
	ProviderStatusFailed     = "failed"
	ProviderStatusCanceled   = "canceled"
)

// Prediction is the provider's view of a submitted job.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
	Logs   string          `json:"logs,omitempty"`
}

// FirstOutput extracts the first output URL. The provider returns either a
// single string or an array of strings.
func (p *Prediction) FirstOutput() string {
	if len(p.Output) == 0 {
		return ""
	}

	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		return single
	}

	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil && len(many) > 0 {
		return many[0]
	}

	return ""
}

func (svc ReplicateService) Id() string {
	return REPLICATE_SVC
}

func (svc *ReplicateService) Configure(ctx *appContext.Context) error {
	svc.token = strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN"))

	svc.baseURL = strings.TrimRight(os.Getenv("REPLICATE_BASE_URL"), "/")
	if svc.baseURL == "" {
		svc.baseURL = "https://api.replicate.com/v1"
	}

	svc.modelName = os.Getenv("REPLICATE_MODEL")
	if svc.modelName == "" {
		svc.modelName = "black-forest-labs/flux-pro"
	}

	svc.httpClient = &http.Client{Timeout: 30 * time.Second}

	return svc.DefaultService.Configure(ctx)
}

func (svc *ReplicateService) Start() error {
	if svc.token == "" {
		return errors.New("REPLICATE_API_TOKEN is not configured")
	}
	return nil
}

type submitInput struct {
	Prompt        string `json:"prompt"`
	AspectRatio   string `json:"aspect_ratio"`
	OutputFormat  string `json:"output_format"`
	OutputQuality int    `json:"output_quality"`
}

type submitRequest struct {
	Input submitInput `json:"input"`
}

// Submit creates a prediction for the prompt and returns the provider's
// opaque job handle.
func (svc *ReplicateService) Submit(ctx context.Context, prompt, aspectRatio string) (*Prediction, error) {
	payload := submitRequest{
		Input: submitInput{
			Prompt:        prompt,
			AspectRatio:   aspectRatio,
			OutputFormat:  "png",
			OutputQuality: 90,
		},
	}

	url := fmt.Sprintf("%s/models/%s/predictions", svc.baseURL, svc.modelName)
	return svc.doPredictionRequest(ctx, http.MethodPost, url, payload)
}

// Poll fetches the current state of a submitted prediction.
func (svc *ReplicateService) Poll(ctx context.Context, predictionID string) (*Prediction, error) {
	url := fmt.Sprintf("%s/predictions/%s", svc.baseURL, predictionID)
	return svc.doPredictionRequest(ctx, http.MethodGet, url, nil)
}

// Cancel asks the provider to stop a prediction. Best effort; callers treat
// their own state as authoritative regardless of the acknowledgment.
func (svc *ReplicateService) Cancel(ctx context.Context, predictionID string) (*Prediction, error) {
	url := fmt.Sprintf("%s/predictions/%s/cancel", svc.baseURL, predictionID)
	return svc.doPredictionRequest(ctx, http.MethodPost, url, nil)
}

func (svc *ReplicateService) doPredictionRequest(ctx context.Context, method, url string, payload interface{}) (*Prediction, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("replicate: failed to encode request: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("replicate: failed to build request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+svc.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("replicate: failed to read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Detail string `json:"detail"`
			Title  string `json:"title"`
		}
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Detail != "" {
			return nil, fmt.Errorf("replicate: %s (status %d)", apiErr.Detail, resp.StatusCode)
		}
		return nil, fmt.Errorf("replicate: unexpected status %d", resp.StatusCode)
	}

	var prediction Prediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return nil, fmt.Errorf("replicate: failed to decode prediction: %v", err)
	}

	return &prediction, nil
}

// MapProviderStatus translates the provider's status vocabulary into the
// generation lifecycle. The provider spells cancellation "canceled"; job
// records use "cancelled".
func MapProviderStatus(providerStatus string) string {
	switch providerStatus {
	case ProviderStatusStarting:
		return shared.StatusStarting
	case ProviderStatusProcessing:
		return shared.StatusProcessing
	case ProviderStatusSucceeded:
		return shared.StatusSucceeded
	case ProviderStatusFailed:
		return shared.StatusFailed
	case ProviderStatusCanceled:
		return shared.StatusCancelled
	default:
		return shared.StatusStarting
	}
}

// ModelVersion is the version tag recorded on generation rows.
func (svc *ReplicateService) ModelVersion() string {
	return model.DefaultModelVersion
}
