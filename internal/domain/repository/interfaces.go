package repository

import (
	"context"
	"time"
)

// TextGenerator sends one prompt to a text model and returns its raw reply.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageProvider turns a prompt into image bytes or fails with *entity.ProviderError.
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, prompt, occasion string) ([]byte, error)
}

// BoundedProvider is implemented by providers that time out each of their own
// network calls. Budget is the longest one Generate may take, internal retries
// included; zero means it is not bounded.
type BoundedProvider interface {
	Budget() time.Duration
}

// UsageLimiter enforces the per-client generation quota.
type UsageLimiter interface {
	CheckLimit(ctx context.Context, clientID string) (bool, error)
	Increment(ctx context.Context, clientID string) error
}

// PlaceholderRenderer draws a local stand-in image. It must not fail.
type PlaceholderRenderer interface {
	Render(occasion string) []byte
}
