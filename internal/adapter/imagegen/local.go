package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"giftcard-core/internal/domain/entity"

	"github.com/rs/zerolog/log"
)

const (
	localBaseURL        = "http://127.0.0.1:7860"
	localNegativePrompt = "blurry, low quality, distorted, deformed"
	localPromptPrefix   = "high quality, detailed, professional greeting card style: "
)

// LocalDiffusionProvider drives a self-hosted Stable Diffusion web API.
// The checkpoint is loaded once on first use and shared by all requests.
type LocalDiffusionProvider struct {
	baseURL string
	modelID string
	fetch   *fetcher

	mu     sync.Mutex
	loaded bool
}

func NewLocalDiffusionProvider(baseURL, modelID string, client *http.Client) *LocalDiffusionProvider {
	if baseURL == "" {
		baseURL = localBaseURL
	}
	return &LocalDiffusionProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		modelID: modelID,
		fetch:   newFetcher("local", client, 0, 1, 0),
	}
}

type txt2imgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Steps          int     `json:"steps"`
	CFGScale       float64 `json:"cfg_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

func (p *LocalDiffusionProvider) Name() string { return "local" }

// Budget is zero: local inference time depends on the hardware and is not bounded.
func (p *LocalDiffusionProvider) Budget() time.Duration { return 0 }

func (p *LocalDiffusionProvider) Generate(ctx context.Context, prompt, _ string) ([]byte, error) {
	if err := p.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(txt2imgRequest{
		Prompt:         localPromptPrefix + prompt,
		NegativePrompt: localNegativePrompt,
		Steps:          30,
		CFGScale:       7.5,
		Width:          512,
		Height:         512,
	})
	if err != nil {
		return nil, entity.ApplicationError(p.Name(), 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	raw, err := p.fetch.do(ctx, "txt2img", p.jsonRequest(http.MethodPost, "/sdapi/v1/txt2img", body))
	if err != nil {
		return nil, err
	}

	var resp txt2imgResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, entity.ApplicationError(p.Name(), 0, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(resp.Images) == 0 {
		return nil, entity.ApplicationError(p.Name(), 0, errors.New("no images in response"))
	}

	data, err := base64.StdEncoding.DecodeString(resp.Images[0])
	if err != nil {
		return nil, entity.ApplicationError(p.Name(), 0, fmt.Errorf("decode image base64: %w", err))
	}
	return requireImage(p.Name(), data)
}

// ensureLoaded switches the server to the configured checkpoint exactly once.
// A failed load is not remembered, so the next request tries again.
func (p *LocalDiffusionProvider) ensureLoaded(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return nil
	}

	var err error
	if p.modelID == "" {
		_, err = p.fetch.do(ctx, "options", p.jsonRequest(http.MethodGet, "/sdapi/v1/options", nil))
	} else {
		body, merr := json.Marshal(map[string]string{"sd_model_checkpoint": p.modelID})
		if merr != nil {
			return entity.ApplicationError(p.Name(), 0, fmt.Errorf("failed to marshal model options: %w", merr))
		}
		_, err = p.fetch.do(ctx, "load", p.jsonRequest(http.MethodPost, "/sdapi/v1/options", body))
	}
	if err != nil {
		return err
	}

	log.Info().Str("provider", p.Name()).Str("model", p.modelID).Msg("diffusion model ready")
	p.loaded = true
	return nil
}

func (p *LocalDiffusionProvider) jsonRequest(method, path string, body []byte) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}
}
