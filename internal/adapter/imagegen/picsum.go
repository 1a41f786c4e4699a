package imagegen

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const picsumBaseURL = "https://picsum.photos"

// PicsumProvider ignores the prompt and returns a random 512px stock photo.
type PicsumProvider struct {
	baseURL string
	fetch   *fetcher
}

func NewPicsumProvider(baseURL string, client *http.Client, timeout time.Duration) *PicsumProvider {
	if baseURL == "" {
		baseURL = picsumBaseURL
	}
	return &PicsumProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetch:   newFetcher("picsum", client, timeout, 1, 0),
	}
}

func (p *PicsumProvider) Name() string { return "picsum" }

func (p *PicsumProvider) Budget() time.Duration { return p.fetch.budget(1) }

func (p *PicsumProvider) Generate(ctx context.Context, _, _ string) ([]byte, error) {
	url := p.baseURL + "/512"
	log.Debug().Str("provider", p.Name()).Str("url", url).Msg("fetching stock image")
	return p.fetch.fetchImage(ctx, url)
}
