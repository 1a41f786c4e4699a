package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"giftcard-core/internal/domain/entity"
	"giftcard-core/internal/domain/repository"

	"github.com/rs/zerolog/log"
)

// ImageOrchestrator always yields an image: the configured provider's output,
// or a locally rendered placeholder once the provider is out of attempts.
type ImageOrchestrator struct {
	provider    repository.ImageProvider
	placeholder repository.PlaceholderRenderer
	maxAttempts int
	delay       time.Duration
	timeout     time.Duration // per attempt, unless the provider reports its own budget
}

func NewImageOrchestrator(provider repository.ImageProvider, placeholder repository.PlaceholderRenderer, cfg entity.ProviderConfig) *ImageOrchestrator {
	o := &ImageOrchestrator{
		provider:    provider,
		placeholder: placeholder,
		maxAttempts: cfg.RetryAttempts,
		delay:       cfg.RetryDelay,
		timeout:     cfg.RequestTimeout,
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}
	return o
}

func (o *ImageOrchestrator) Acquire(ctx context.Context, prompt, occasion string) entity.ImageResult {
	if o.provider != nil {
		data, err := o.executeWithRetry(ctx, prompt, occasion)
		if err == nil {
			log.Info().Str("provider", o.provider.Name()).Str("provenance", string(entity.ProvenanceGenerated)).
				Int("bytes", len(data)).Msg("image acquired")
			return entity.ImageResult{
				Data:       data,
				MimeType:   mimeOf(data),
				Provenance: entity.ProvenanceGenerated,
				Provider:   o.provider.Name(),
			}
		}
		log.Warn().Str("stage", "image").Str("provider", o.provider.Name()).Err(err).
			Msg("provider exhausted, rendering placeholder")
	}

	return entity.ImageResult{
		Data:       o.placeholder.Render(occasion),
		MimeType:   "image/png",
		Provenance: entity.ProvenancePlaceholder,
		Provider:   "placeholder",
	}
}

func (o *ImageOrchestrator) executeWithRetry(ctx context.Context, prompt, occasion string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := o.generateOnce(ctx, prompt, occasion)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !retryable(err) || attempt == o.maxAttempts {
			break
		}

		log.Warn().Str("provider", o.provider.Name()).Int("attempt", attempt).Err(err).Msg("retrying image provider")
		select {
		case <-time.After(o.delay):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// generateOnce bounds a single provider call and turns panics into errors.
func (o *ImageOrchestrator) generateOnce(ctx context.Context, prompt, occasion string) (data []byte, err error) {
	if timeout := o.attemptTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = entity.ApplicationError(o.provider.Name(), 0, fmt.Errorf("provider panicked: %v", r))
		}
	}()

	data, err = o.provider.Generate(ctx, prompt, occasion)
	if err == nil && len(data) == 0 {
		err = entity.ApplicationError(o.provider.Name(), 0, errors.New("provider returned no bytes"))
	}
	return data, err
}

// attemptTimeout leaves providers that time out their own calls to their
// budget, so their internal retries are not cut short.
func (o *ImageOrchestrator) attemptTimeout() time.Duration {
	if b, ok := o.provider.(repository.BoundedProvider); ok {
		return b.Budget()
	}
	return o.timeout
}

// retryable is true for transport failures the provider has not already
// retried on its own.
func retryable(err error) bool {
	var pe *entity.ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return entity.IsTransport(err)
}

func mimeOf(data []byte) string {
	return http.DetectContentType(data)
}
