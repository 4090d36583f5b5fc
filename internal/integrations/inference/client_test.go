package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatsum/internal/domain"
)

// ---------------------------------------------------------------------------
// modelURL helper
// ---------------------------------------------------------------------------

func TestModelURL(t *testing.T) {
	cases := []struct {
		base  string
		model string
		want  string
	}{
		{"https://api-inference.huggingface.co", "t5-small", "https://api-inference.huggingface.co/models/t5-small"},
		{"http://localhost:8080/", "t5-small", "http://localhost:8080/models/t5-small"},
		{"", "google/flan-t5-base", "https://api-inference.huggingface.co/models/google/flan-t5-base"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, modelURL(tc.base, tc.model), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient()
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.Equal(t, "t5-small", c.model)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(WithModel(" "))
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")

	_, err = NewClient(WithParameterStoreToken(&fakeGetter{}, " "))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parameter name")
}

// ---------------------------------------------------------------------------
// resolveAPIKey
// ---------------------------------------------------------------------------

type fakeGetter struct {
	val    string
	err    error
	onCall func()
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"hf-from-ssm"}`, onCall: func() { calls++ }}
	c, err := NewClient(WithParameterStoreToken(g, "/chatsum/inference-token"))
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hf-from-ssm", key)

	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, calls)
}

func TestResolveAPIKey_RetriesAfterError(t *testing.T) {
	g := &fakeGetter{err: errors.New("throttled")}
	c, err := NewClient(WithParameterStoreToken(g, "/chatsum/inference-token"))
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.ErrorContains(t, err, "throttled")

	g.err = nil
	g.val = `{"token":"hf-later"}`
	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hf-later", key)
}

func TestResolveAPIKey_StaticKeyWins(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"hf-from-ssm"}`, onCall: func() { calls++ }}
	c, err := NewClient(WithParameterStoreToken(g, "/chatsum/inference-token"), WithAPIKey("hf-static"))
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hf-static", key)
	require.Zero(t, calls)
}

func TestResolveAPIKey_Anonymous(t *testing.T) {
	c, err := NewClient()
	require.NoError(t, err)
	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Empty(t, key)
}

func TestFetchAPIKey(t *testing.T) {
	_, err := fetchAPIKeyFromParamStore(context.Background(), &fakeGetter{val: `{"other":"v"}`}, "/p")
	require.ErrorContains(t, err, "API token is empty")

	_, err = fetchAPIKeyFromParamStore(context.Background(), &fakeGetter{val: `{"broken`}, "/p")
	require.ErrorContains(t, err, "unmarshal")

	_, err = fetchAPIKeyFromParamStore(context.Background(), &fakeGetter{err: errors.New("ssm unavailable")}, "/p")
	require.ErrorContains(t, err, "ssm unavailable")

	_, err = fetchAPIKeyFromParamStore(context.Background(), nil, "/p")
	require.ErrorContains(t, err, "nil")

	_, err = fetchAPIKeyFromParamStore(context.Background(), &fakeGetter{}, " ")
	require.ErrorContains(t, err, "empty")
}

// ---------------------------------------------------------------------------
// Client.Summarize
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithAPIKey("hf-test"),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	}, opts...)
	c, err := NewClient(opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Summarize_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/t5-small", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer hf-test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, "summarize: hello world", body["inputs"])
		params := body["parameters"].(map[string]any)
		require.EqualValues(t, 30, params["min_length"])
		require.EqualValues(t, 150, params["max_length"])
		require.EqualValues(t, 2.0, params["length_penalty"])
		require.EqualValues(t, 4, params["num_beams"])
		require.Equal(t, true, params["early_stopping"])
		require.Equal(t, false, params["do_sample"])
		require.EqualValues(t, 512, params["max_input_length"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"summary_text":" Two people greet each other. "}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Summarize(context.Background(), "summarize: hello world", domain.DefaultGenerationConfig())
	require.NoError(t, err)
	require.Equal(t, "Two people greet each other.", out)
}

func TestClient_Summarize_GeneratedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/google/flan-t5-base", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"generated_text":"a summary"}]`))
	}))
	defer srv.Close()

	c, err := NewClient(WithBaseURL(srv.URL), WithModel("google/flan-t5-base"))
	require.NoError(t, err)
	out, err := c.Summarize(context.Background(), "summarize: x", domain.DefaultGenerationConfig())
	require.NoError(t, err)
	require.Equal(t, "a summary", out)
}

func TestClient_Summarize_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model t5-small is currently loading"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Summarize(context.Background(), "summarize: x", domain.DefaultGenerationConfig())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 503")

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.HTTPStatusCode())
}

func TestClient_Summarize_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Summarize(context.Background(), "summarize: x", domain.DefaultGenerationConfig())
	require.ErrorContains(t, err, "decode response")
}

func TestClient_Summarize_NoGenerations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Summarize(context.Background(), "summarize: x", domain.DefaultGenerationConfig())
	require.ErrorContains(t, err, "no generations")
}

func TestClient_Summarize_EmptyGeneration(t *testing.T) {
	for _, body := range []string{`[{"summary_text":""}]`, `[{"generated_text":"  \n"}]`, `[{}]`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		c := newTestClient(t, srv)
		summary, err := c.Summarize(context.Background(), "summarize: x", domain.DefaultGenerationConfig())
		srv.Close()
		require.Empty(t, summary)
		require.ErrorContains(t, err, "empty generation", "body=%s", body)
	}
}

func TestClient_Summarize_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Summarize(context.Background(), "summarize: x", domain.DefaultGenerationConfig())
	require.ErrorContains(t, err, "request failed")
}

func TestClient_Summarize_TokenLookupError(t *testing.T) {
	c, err := NewClient(WithParameterStoreToken(&fakeGetter{err: errors.New("ssm unavailable")}, "/chatsum/inference-token"))
	require.NoError(t, err)
	_, err = c.Summarize(context.Background(), "summarize: x", domain.DefaultGenerationConfig())
	require.ErrorContains(t, err, "ssm unavailable")
}

func TestClient_Summarize_EmptyPrompt(t *testing.T) {
	c, err := NewClient()
	require.NoError(t, err)
	_, err = c.Summarize(context.Background(), "  ", domain.DefaultGenerationConfig())
	require.ErrorContains(t, err, "prompt")
}
