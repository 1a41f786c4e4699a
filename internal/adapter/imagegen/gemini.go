package imagegen

import (
	"context"
	"errors"
	"fmt"

	"giftcard-core/internal/domain/entity"

	"google.golang.org/genai"
)

const geminiDefaultImageModel = "gemini-2.5-flash-image"

// GeminiProvider asks a Gemini image model for an inline image part.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider builds a genai client for the Gemini API. baseURL is only
// set when pointing at a proxy or a test server.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL, model string) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to init genai client: %w", err)
	}
	return NewGeminiProviderFromClient(client, model), nil
}

// NewGeminiProviderFromClient reuses a genai client, typically the one the text
// backend already holds.
func NewGeminiProviderFromClient(client *genai.Client, model string) *GeminiProvider {
	if model == "" {
		model = geminiDefaultImageModel
	}
	return &GeminiProvider{client: client, model: model}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, prompt, _ string) ([]byte, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, entity.ClassifyTransport(p.Name(), err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, entity.ApplicationError(p.Name(), 0, errors.New("no candidates in response"))
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return requireImage(p.Name(), part.InlineData.Data)
		}
	}
	return nil, entity.ApplicationError(p.Name(), 0,
		fmt.Errorf("no image data (finish reason: %s)", resp.Candidates[0].FinishReason))
}
