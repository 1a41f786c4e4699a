package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"giftcard-core/internal/domain/entity"
)

// stubLLM replies with a fixed text or error and records the prompts it saw.
type stubLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *stubLLM) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

// stubProvider plays back a scripted sequence of results, one per call.
type stubProvider struct {
	mu      sync.Mutex
	results []providerResult
	calls   int
	prompts []string
}

type providerResult struct {
	data  []byte
	err   error
	block bool // wait for the call's context to expire
	delay time.Duration
	panic bool
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, prompt, _ string) ([]byte, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	r := s.results[len(s.results)-1]
	if i < len(s.results) {
		r = s.results[i]
	}
	if r.panic {
		panic("boom")
	}
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.data, r.err
}

func (s *stubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// boundedProvider is a stubProvider that times out its own calls.
type boundedProvider struct {
	*stubProvider
	budget time.Duration
}

func (b boundedProvider) Budget() time.Duration { return b.budget }

type stubPlaceholder struct{ occasions []string }

func (s *stubPlaceholder) Render(occasion string) []byte {
	s.occasions = append(s.occasions, occasion)
	return pngBytes(8, 8)
}

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func testProviderConfig() entity.ProviderConfig {
	return entity.ProviderConfig{
		Kind:           "stub",
		RequestTimeout: time.Second,
		RetryAttempts:  3,
		RetryDelay:     time.Millisecond,
	}
}

var (
	errUnreachable = errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")
	richPrompt     = "A cozy office farewell scene with warm golden light, a handwritten card on a wooden desk, " +
		"colleagues smiling in the background, soft bokeh, flowers and a small cake with candles"
)
