package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaClient is a TextGenerator backed by a local Ollama server's chat API.
type OllamaClient struct {
	client *api.Client
	model  string
}

func NewOllamaClient(endpoint, model string, timeout time.Duration) (*OllamaClient, error) {
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama endpoint %q: %w", endpoint, err)
	}
	return &OllamaClient{
		client: api.NewClient(base, &http.Client{Timeout: timeout}),
		model:  model,
	}, nil
}

func (o *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
	}

	var reply strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return "", fmt.Errorf("ollama returned status %d: %s", se.StatusCode, se.ErrorMessage)
		}
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return reply.String(), nil
}
