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

	"github.com/rs/zerolog/log"
)

const (
	openAIBaseURL      = "https://api.openai.com"
	openAIDefaultModel = "dall-e-3"
)

// OpenAIProvider submits the prompt to the images API, then downloads the
// returned URL. Each of the two calls is retried independently.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	fetch   *fetcher
}

func NewOpenAIProvider(apiKey, baseURL, model string, client *http.Client, timeout time.Duration, attempts int, delay time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		fetch:   newFetcher("openai", client, timeout, attempts, delay),
	}
}

type openAIImageRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	Model          string `json:"model"`
}

type openAIImageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Budget covers both calls with all their retries.
func (p *OpenAIProvider) Budget() time.Duration { return p.fetch.budget(2) }

func (p *OpenAIProvider) Generate(ctx context.Context, prompt, _ string) ([]byte, error) {
	body, err := json.Marshal(openAIImageRequest{
		Prompt:         prompt,
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "url",
		Model:          p.model,
	})
	if err != nil {
		return nil, entity.ApplicationError(p.Name(), 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	log.Info().Str("provider", p.Name()).Str("model", p.model).Msg("submitting image generation")

	raw, err := p.fetch.do(ctx, "submit", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/images/generations", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp openAIImageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, entity.ApplicationError(p.Name(), 0, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, entity.ApplicationError(p.Name(), 0, errors.New("no image URL in response"))
	}

	log.Debug().Str("provider", p.Name()).Str("url", resp.Data[0].URL).Msg("got image URL")
	return p.fetch.fetchImage(ctx, resp.Data[0].URL)
}
