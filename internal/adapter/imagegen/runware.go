package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"giftcard-core/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	runwareBaseURL      = "https://api.runware.ai/v1"
	runwareDefaultModel = "runware:100@1"
)

// RunwareProvider authenticates inside the task payload, then downloads the
// image URL the inference task returns.
type RunwareProvider struct {
	apiKey  string
	url     string
	modelID string
	fetch   *fetcher
}

func NewRunwareProvider(apiKey, url, modelID string, client *http.Client, timeout time.Duration, attempts int, delay time.Duration) *RunwareProvider {
	if url == "" {
		url = runwareBaseURL
	}
	if modelID == "" {
		modelID = runwareDefaultModel
	}
	return &RunwareProvider{
		apiKey:  apiKey,
		url:     strings.TrimRight(url, "/"),
		modelID: modelID,
		fetch:   newFetcher("runware", client, timeout, attempts, delay),
	}
}

type runwareTask struct {
	TaskType       string `json:"taskType"`
	APIKey         string `json:"apiKey,omitempty"`
	TaskUUID       string `json:"taskUUID,omitempty"`
	PositivePrompt string `json:"positivePrompt,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	ModelID        string `json:"modelId,omitempty"`
	NumberResults  int    `json:"numberResults,omitempty"`
}

type runwareResponse struct {
	Data []struct {
		TaskType string `json:"taskType"`
		TaskUUID string `json:"taskUUID"`
		ImageURL string `json:"imageURL"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (p *RunwareProvider) Name() string { return "runware" }

// Budget covers the inference call and the download with all their retries.
func (p *RunwareProvider) Budget() time.Duration { return p.fetch.budget(2) }

func (p *RunwareProvider) Generate(ctx context.Context, prompt, _ string) ([]byte, error) {
	taskID := uuid.NewString()
	payload := []runwareTask{
		{TaskType: "authentication", APIKey: p.apiKey},
		{
			TaskType:       "imageInference",
			TaskUUID:       taskID,
			PositivePrompt: prompt,
			Width:          512,
			Height:         512,
			ModelID:        p.modelID,
			NumberResults:  1,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, entity.ApplicationError(p.Name(), 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	log.Info().Str("provider", p.Name()).Str("task_uuid", taskID).Msg("submitting image inference")

	raw, err := p.fetch.do(ctx, "submit", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp runwareResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, entity.ApplicationError(p.Name(), 0, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(resp.Errors) > 0 {
		return nil, entity.ApplicationError(p.Name(), 0, errors.New(resp.Errors[0].Message))
	}

	imageURL := ""
	for _, d := range resp.Data {
		if d.ImageURL != "" {
			imageURL = d.ImageURL
			break
		}
	}
	if imageURL == "" {
		return nil, entity.ApplicationError(p.Name(), 0, errors.New("no image URL in response"))
	}

	return p.fetch.fetchImage(ctx, imageURL)
}
