package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"giftcard-core/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

// deadURL returns the address of a server that is no longer listening.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

const testTimeout = 5 * time.Second

func testClient() *http.Client {
	return NewHTTPClient(time.Second)
}

func TestOpenAIProvider_SubmitThenDownload(t *testing.T) {
	img := testPNG(t)
	var srvURL string
	var submitted openAIImageRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		_, _ = io.WriteString(w, `{"data":[{"url":"`+srvURL+`/img/1.png"}]}`)
	})
	mux.HandleFunc("/img/1.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(img)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	p := NewOpenAIProvider("sk-test", srv.URL, "", testClient(), testTimeout, 3, time.Millisecond)
	data, err := p.Generate(context.Background(), "a sunny garden party", "birthday")

	require.NoError(t, err)
	assert.Equal(t, img, data)
	assert.Equal(t, "a sunny garden party", submitted.Prompt)
	assert.Equal(t, 1, submitted.N)
	assert.Equal(t, "1024x1024", submitted.Size)
	assert.Equal(t, "url", submitted.ResponseFormat)
	assert.Equal(t, openAIDefaultModel, submitted.Model)
}

func TestOpenAIProvider_ServerErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "", testClient(), testTimeout, 3, time.Millisecond)
	_, err := p.Generate(context.Background(), "prompt", "birthday")

	require.Error(t, err)
	var pe *entity.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, entity.KindApplication, pe.Kind)
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	assert.False(t, pe.Retryable())
	assert.ErrorIs(t, err, entity.ErrProviderFailure)
	assert.Equal(t, int32(1), hits.Load())
}

func TestOpenAIProvider_MissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "", testClient(), testTimeout, 3, time.Millisecond)
	_, err := p.Generate(context.Background(), "prompt", "birthday")

	var pe *entity.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, entity.KindApplication, pe.Kind)
}

func TestOpenAIProvider_DownloadTransportFailureIsExhausted(t *testing.T) {
	dead := deadURL(t)
	var submits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		_, _ = io.WriteString(w, `{"data":[{"url":"`+dead+`/gone.png"}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "", testClient(), testTimeout, 2, time.Millisecond)
	_, err := p.Generate(context.Background(), "prompt", "birthday")

	var pe *entity.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, entity.KindTransport, pe.Kind)
	assert.True(t, pe.Exhausted)
	assert.False(t, pe.Retryable())
	assert.Equal(t, int32(1), submits.Load(), "only the failing download is retried")
}

func TestRunwareProvider_Payload(t *testing.T) {
	img := testPNG(t)
	var srvURL string
	var tasks []map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/v1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tasks))
		_, _ = io.WriteString(w, `{"data":[{"taskType":"imageInference","imageURL":"`+srvURL+`/out.png"}]}`)
	})
	mux.HandleFunc("/out.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(img)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	p := NewRunwareProvider("rw-key", srv.URL+"/v1", "", testClient(), testTimeout, 3, time.Millisecond)
	data, err := p.Generate(context.Background(), "lanterns over a lake", "holiday")

	require.NoError(t, err)
	assert.Equal(t, img, data)
	require.Len(t, tasks, 2)
	assert.Equal(t, "authentication", tasks[0]["taskType"])
	assert.Equal(t, "rw-key", tasks[0]["apiKey"])
	assert.Equal(t, "imageInference", tasks[1]["taskType"])
	assert.Equal(t, "lanterns over a lake", tasks[1]["positivePrompt"])
	assert.Equal(t, runwareDefaultModel, tasks[1]["modelId"])
	assert.EqualValues(t, 512, tasks[1]["width"])
	assert.EqualValues(t, 512, tasks[1]["height"])
	assert.EqualValues(t, 1, tasks[1]["numberResults"])
	_, err = uuid.Parse(tasks[1]["taskUUID"].(string))
	assert.NoError(t, err)
}

func TestRunwareProvider_ReportedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"errors":[{"message":"invalid api key"}]}`)
	}))
	defer srv.Close()

	p := NewRunwareProvider("bad", srv.URL, "", testClient(), testTimeout, 3, time.Millisecond)
	_, err := p.Generate(context.Background(), "prompt", "holiday")

	var pe *entity.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, entity.KindApplication, pe.Kind)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestPicsumProvider(t *testing.T) {
	img := testPNG(t)

	t.Run("image", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/512", r.URL.Path)
			_, _ = w.Write(img)
		}))
		defer srv.Close()

		data, err := NewPicsumProvider(srv.URL, testClient(), testTimeout).Generate(context.Background(), "ignored", "other")
		require.NoError(t, err)
		assert.Equal(t, img, data)
	})

	t.Run("html instead of image", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html><body>rate limited</body></html>")
		}))
		defer srv.Close()

		_, err := NewPicsumProvider(srv.URL, testClient(), testTimeout).Generate(context.Background(), "ignored", "other")
		var pe *entity.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, entity.KindApplication, pe.Kind)
		assert.Contains(t, err.Error(), "not an image")
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := NewPicsumProvider(deadURL(t), testClient(), testTimeout).Generate(context.Background(), "ignored", "other")
		var pe *entity.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.True(t, pe.Retryable(), "single-attempt providers leave retries to the caller")
	})
}

func TestLocalDiffusionProvider_LoadsModelOnce(t *testing.T) {
	img := testPNG(t)
	var loads atomic.Int32
	var mu sync.Mutex
	var prompts []string

	mux := http.NewServeMux()
	mux.HandleFunc("/sdapi/v1/options", func(w http.ResponseWriter, r *http.Request) {
		loads.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sd15.safetensors", body["sd_model_checkpoint"])
		_, _ = io.WriteString(w, `{}`)
	})
	mux.HandleFunc("/sdapi/v1/txt2img", func(w http.ResponseWriter, r *http.Request) {
		var req txt2imgRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		assert.Equal(t, localNegativePrompt, req.NegativePrompt)
		assert.Equal(t, 30, req.Steps)
		_ = json.NewEncoder(w).Encode(txt2imgResponse{Images: []string{base64.StdEncoding.EncodeToString(img)}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewLocalDiffusionProvider(srv.URL, "sd15.safetensors", testClient())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := p.Generate(context.Background(), "a quiet snowy cabin", "holiday")
			assert.NoError(t, err)
			assert.Equal(t, img, data)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	require.Len(t, prompts, 8)
	assert.True(t, strings.HasPrefix(prompts[0], localPromptPrefix))
}

func TestLocalDiffusionProvider_FailedLoadIsRetriedNextCall(t *testing.T) {
	var loads atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/sdapi/v1/options", func(w http.ResponseWriter, r *http.Request) {
		if loads.Add(1) == 1 {
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	})
	mux.HandleFunc("/sdapi/v1/txt2img", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(txt2imgResponse{Images: []string{base64.StdEncoding.EncodeToString(testPNG(t))}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewLocalDiffusionProvider(srv.URL, "", testClient())

	_, err := p.Generate(context.Background(), "prompt", "other")
	require.Error(t, err)
	_, err = p.Generate(context.Background(), "prompt", "other")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestGeminiProvider_InlineImage(t *testing.T) {
	img := testPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role": "model",
					"parts": []map[string]any{
						{"text": "Here is your card."},
						{"inlineData": map[string]any{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(img)}},
					},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), "test-key", srv.URL, "")
	require.NoError(t, err)

	data, err := p.Generate(context.Background(), "confetti and balloons", "birthday")
	require.NoError(t, err)
	assert.Equal(t, img, data)
}

func TestGeminiProvider_TextOnlyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"I cannot draw that."}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), "test-key", srv.URL, "")
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "prompt", "birthday")
	var pe *entity.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, entity.KindApplication, pe.Kind)
}

func TestNew(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		_, err := New(context.Background(), entity.ProviderConfig{Kind: "midjourney"})
		assert.ErrorIs(t, err, entity.ErrUnknownProvider)
	})

	for _, kind := range []entity.ProviderKind{entity.ProviderOpenAI, entity.ProviderRunware, entity.ProviderGemini} {
		t.Run("missing credential "+string(kind), func(t *testing.T) {
			_, err := New(context.Background(), entity.ProviderConfig{Kind: kind})
			assert.ErrorIs(t, err, entity.ErrMissingCredential)
		})
	}

	t.Run("picsum needs no credential", func(t *testing.T) {
		p, err := New(context.Background(), entity.ProviderConfig{Kind: entity.ProviderPicsum, RequestTimeout: time.Second})
		require.NoError(t, err)
		assert.Equal(t, "picsum", p.Name())
	})

	t.Run("local", func(t *testing.T) {
		p, err := New(context.Background(), entity.ProviderConfig{Kind: entity.ProviderLocal})
		require.NoError(t, err)
		assert.Equal(t, "local", p.Name())
	})
}

func TestOpenAIProvider_SlowSubmitIsRetried(t *testing.T) {
	img := testPNG(t)
	var srvURL string
	var submits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		if submits.Add(1) == 1 {
			select {
			case <-time.After(400 * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
		_, _ = io.WriteString(w, `{"data":[{"url":"`+srvURL+`/img.png"}]}`)
	})
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(img)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	p, err := New(context.Background(), entity.ProviderConfig{
		Kind:           entity.ProviderOpenAI,
		Credential:     "sk-test",
		Endpoint:       srv.URL,
		RequestTimeout: 200 * time.Millisecond,
		ConnectTimeout: time.Second,
		RetryAttempts:  3,
		RetryDelay:     10 * time.Millisecond,
	})
	require.NoError(t, err)

	data, err := p.Generate(context.Background(), "prompt", "birthday")
	require.NoError(t, err)
	assert.Equal(t, img, data)
	assert.Equal(t, int32(2), submits.Load())
}

func TestFetcher_AttemptTimeoutIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := newFetcher("stub", testClient(), 50*time.Millisecond, 1, 0)
	_, err := f.do(context.Background(), "get", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})

	var pe *entity.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, entity.KindTransport, pe.Kind)
	assert.True(t, pe.Retryable())
}

func TestFetcher_CancelledContextIsNotRetryable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFetcher("stub", testClient(), time.Second, 3, 0)
	_, err := f.do(ctx, "get", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	})

	var pe *entity.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, entity.KindApplication, pe.Kind)
}

func TestBudget(t *testing.T) {
	p := NewOpenAIProvider("k", "", "", testClient(), 60*time.Second, 3, time.Second)
	// two calls, each 3 x 60s plus 2 x 1s backoff
	assert.Equal(t, 2*(180*time.Second+2*time.Second)+budgetSlack, p.Budget())

	assert.Equal(t, 5*time.Second+budgetSlack, NewPicsumProvider("", testClient(), 5*time.Second).Budget())
	assert.Zero(t, NewLocalDiffusionProvider("", "", testClient()).Budget())
}
