package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"giftcard-core/internal/domain/entity"
	"giftcard-core/internal/logging"

	"github.com/rs/zerolog/log"
)

// budgetSlack covers response decoding between the calls of one Generate.
const budgetSlack = time.Second

// NewHTTPClient returns a client with a connect timeout. The overall bound of a
// request is set per attempt by the fetcher.
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.MaxIdleConnsPerHost = 5
	transport.MaxConnsPerHost = 10
	return &http.Client{Transport: transport}
}

// fetcher performs single HTTP calls for a provider, retrying transport-class
// failures up to attempts times with a fixed delay. Non-2xx replies fail at once.
// Each attempt gets its own timeout, so one slow attempt does not use up the
// deadline of the retries that follow it.
type fetcher struct {
	provider string
	client   *http.Client
	timeout  time.Duration // per attempt, 0 = unbounded
	attempts int
	delay    time.Duration
}

func newFetcher(provider string, client *http.Client, timeout time.Duration, attempts int, delay time.Duration) *fetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &fetcher{provider: provider, client: client, timeout: timeout, attempts: attempts, delay: delay}
}

// budget is the longest that steps sequential calls can take, retries and
// backoff included. Zero when attempts are unbounded.
func (f *fetcher) budget(steps int) time.Duration {
	if f.timeout <= 0 {
		return 0
	}
	perStep := time.Duration(f.attempts)*f.timeout + time.Duration(f.attempts-1)*f.delay
	return time.Duration(steps)*perStep + budgetSlack
}

// do runs the request built by newReq and returns the body of a 2xx reply.
func (f *fetcher) do(ctx context.Context, label string, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, entity.ClassifyTransport(f.provider, err)
		}

		body, err := f.once(ctx, newReq)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !entity.IsTransport(err) || attempt == f.attempts {
			break
		}

		log.Warn().
			Str("provider", f.provider).
			Str("call", label).
			Int("attempt", attempt).
			Err(err).
			Msg("transport failure, retrying")

		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, entity.ClassifyTransport(f.provider, ctx.Err())
		}
	}

	pe := entity.ClassifyTransport(f.provider, lastErr)
	if pe.Kind == entity.KindTransport && f.attempts > 1 {
		pe.Exhausted = true
	}
	return nil, pe
}

func (f *fetcher) once(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := newReq(ctx)
	if err != nil {
		return nil, entity.ApplicationError(f.provider, 0, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, entity.ClassifyTransport(f.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, entity.TransportError(f.provider, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, entity.ApplicationError(f.provider, resp.StatusCode, errors.New(logging.Truncate(string(raw), 200)))
	}
	return raw, nil
}

// fetchImage downloads url and checks that the payload is an image.
func (f *fetcher) fetchImage(ctx context.Context, url string) ([]byte, error) {
	data, err := f.do(ctx, "download", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, err
	}
	return requireImage(f.provider, data)
}

// requireImage rejects empty or non-image payloads.
func requireImage(provider string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, entity.ApplicationError(provider, 0, errors.New("empty image payload"))
	}
	if mime := http.DetectContentType(data); !strings.HasPrefix(mime, "image/") {
		return nil, entity.ApplicationError(provider, 0, fmt.Errorf("payload is %s, not an image", mime))
	}
	return data, nil
}
