package imagegen

import (
	"context"
	"fmt"

	"giftcard-core/internal/domain/entity"
	"giftcard-core/internal/domain/repository"

	"github.com/rs/zerolog/log"
)

type factory func(ctx context.Context, cfg entity.ProviderConfig) (repository.ImageProvider, error)

var factories = map[entity.ProviderKind]factory{
	entity.ProviderPicsum: func(_ context.Context, cfg entity.ProviderConfig) (repository.ImageProvider, error) {
		return NewPicsumProvider(cfg.Endpoint, NewHTTPClient(cfg.ConnectTimeout), cfg.RequestTimeout), nil
	},
	entity.ProviderOpenAI: func(_ context.Context, cfg entity.ProviderConfig) (repository.ImageProvider, error) {
		return NewOpenAIProvider(cfg.Credential, cfg.Endpoint, cfg.ModelID,
			NewHTTPClient(cfg.ConnectTimeout), cfg.RequestTimeout, cfg.RetryAttempts, cfg.RetryDelay), nil
	},
	entity.ProviderRunware: func(_ context.Context, cfg entity.ProviderConfig) (repository.ImageProvider, error) {
		return NewRunwareProvider(cfg.Credential, cfg.Endpoint, cfg.ModelID,
			NewHTTPClient(cfg.ConnectTimeout), cfg.RequestTimeout, cfg.RetryAttempts, cfg.RetryDelay), nil
	},
	entity.ProviderLocal: func(_ context.Context, cfg entity.ProviderConfig) (repository.ImageProvider, error) {
		// Local inference is slow; only the connect timeout is bounded here.
		return NewLocalDiffusionProvider(cfg.Endpoint, cfg.ModelID, NewHTTPClient(cfg.ConnectTimeout)), nil
	},
	entity.ProviderGemini: func(ctx context.Context, cfg entity.ProviderConfig) (repository.ImageProvider, error) {
		return NewGeminiProvider(ctx, cfg.Credential, cfg.Endpoint, cfg.ModelID)
	},
}

var requiresCredential = map[entity.ProviderKind]bool{
	entity.ProviderOpenAI:  true,
	entity.ProviderRunware: true,
	entity.ProviderGemini:  true,
}

// New builds the image provider selected by cfg.Kind.
func New(ctx context.Context, cfg entity.ProviderConfig) (repository.ImageProvider, error) {
	build, ok := factories[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownProvider, cfg.Kind)
	}
	if requiresCredential[cfg.Kind] && cfg.Credential == "" {
		return nil, fmt.Errorf("%w: %s generator needs an API key", entity.ErrMissingCredential, cfg.Kind)
	}

	p, err := build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", p.Name()).Msg("image provider initialized")
	return p, nil
}
