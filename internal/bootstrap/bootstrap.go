// Package bootstrap assembles the generation pipeline from configuration. It is
// shared by the HTTP server and the command-line tool.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"giftcard-core/internal/adapter/client"
	"giftcard-core/internal/adapter/imagegen"
	"giftcard-core/internal/adapter/render"
	"giftcard-core/internal/config"
	"giftcard-core/internal/domain/entity"
	"giftcard-core/internal/domain/repository"
	"giftcard-core/internal/usecase"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const ollamaTimeout = 120 * time.Second

// NewTextGenerator selects the text backend named in cfg.
func NewTextGenerator(ctx context.Context, cfg config.TextConfig) (repository.TextGenerator, error) {
	switch cfg.Backend {
	case config.TextBackendGemini:
		llm, err := client.NewGeminiClient(ctx, cfg.APIKey, cfg.Project, cfg.Location, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to init genai client: %w", err)
		}
		return llm, nil
	case config.TextBackendOllama:
		return client.NewOllamaClient(cfg.Endpoint, cfg.Model, ollamaTimeout)
	default:
		return nil, fmt.Errorf("unsupported text backend %q", cfg.Backend)
	}
}

// sharesGeminiClient reports whether the text backend and the image provider
// can use one genai client: both are Gemini with the same API key and the
// image side has no endpoint override.
func sharesGeminiClient(cfg config.Config) bool {
	return cfg.Text.Backend == config.TextBackendGemini &&
		cfg.Image.Kind == entity.ProviderGemini &&
		cfg.Text.APIKey != "" &&
		cfg.Text.APIKey == cfg.Image.Credential &&
		cfg.Image.Endpoint == ""
}

func newBackends(ctx context.Context, cfg config.Config) (repository.TextGenerator, repository.ImageProvider, error) {
	if sharesGeminiClient(cfg) {
		gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.Text.APIKey, Backend: genai.BackendGeminiAPI})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init genai client: %w", err)
		}
		log.Info().Msg("text and image generation share one genai client")
		return client.NewGeminiClientFromClient(gc, cfg.Text.Model), imagegen.NewGeminiProviderFromClient(gc, cfg.Image.ModelID), nil
	}

	llm, err := NewTextGenerator(ctx, cfg.Text)
	if err != nil {
		return nil, nil, err
	}
	provider, err := imagegen.New(ctx, cfg.Image)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init image provider: %w", err)
	}
	return llm, provider, nil
}

// NewPipeline wires the text backend, the image provider selected once for the
// process lifetime, and the placeholder renderer into a Pipeline.
func NewPipeline(ctx context.Context, cfg config.Config) (*usecase.Pipeline, error) {
	llm, provider, err := newBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}

	placeholder, err := render.NewPlaceholder(render.DefaultSize, render.DefaultSize, cfg.PlaceholderFont)
	if err != nil {
		return nil, fmt.Errorf("failed to init placeholder renderer: %w", err)
	}

	composer := usecase.NewMessageComposer(cfg.MinPromptWords)
	extractor := usecase.NewStructuredExtractor(llm, composer)
	images := usecase.NewImageOrchestrator(provider, placeholder, cfg.Image)
	return usecase.NewPipeline(extractor, images), nil
}
