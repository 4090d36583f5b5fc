package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"chatsum/internal/domain"
)

const (
	defaultBaseURL = "https://api-inference.huggingface.co"
	defaultModel   = "t5-small"
	defaultTimeout = 60 * time.Second
)

// generateRequest is the Hugging Face Inference API payload for
// text2text-generation and summarization pipelines.
type generateRequest struct {
	Inputs     string          `json:"inputs"`
	Parameters generateParams  `json:"parameters"`
	Options    generateOptions `json:"options"`
}

type generateParams struct {
	MinLength      int     `json:"min_length"`
	MaxLength      int     `json:"max_length"`
	LengthPenalty  float64 `json:"length_penalty"`
	NumBeams       int     `json:"num_beams"`
	EarlyStopping  bool    `json:"early_stopping"`
	DoSample       bool    `json:"do_sample"`
	Truncation     string  `json:"truncation"`
	MaxInputLength int     `json:"max_input_length"`
}

type generateOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

// generation is one element of the response array. Summarization pipelines
// answer with summary_text, text2text pipelines with generated_text.
type generation struct {
	SummaryText   string `json:"summary_text"`
	GeneratedText string `json:"generated_text"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("inference: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls a hosted sequence-to-sequence model.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client

	staticKey string
	getter    Getter
	tokenName string

	keyMu  sync.Mutex
	apiKey string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = strings.TrimSpace(model)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sets a static bearer token. It takes precedence over a
// parameter-store token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.staticKey = strings.TrimSpace(key)
	}
}

// WithParameterStoreToken resolves the bearer token from the named parameter
// on first use and reuses it for the lifetime of the process.
func WithParameterStoreToken(getter Getter, name string) Option {
	return func(c *Client) {
		c.getter = getter
		c.tokenName = strings.TrimSpace(name)
	}
}

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.model == "" {
		return nil, errors.New("inference: model must not be empty")
	}
	if c.getter != nil && c.tokenName == "" {
		return nil, errors.New("inference: token parameter name must not be empty")
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("inference: parse base url: %w", err)
	}
	return c, nil
}

// resolveAPIKey returns the static key, or the parameter-store token once it
// has been fetched successfully. An empty key means anonymous access.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	if c.staticKey != "" || c.getter == nil {
		return c.staticKey, nil
	}

	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenName)
	if err != nil {
		return "", err
	}
	c.apiKey = key
	return key, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func modelURL(baseURL, model string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/models/" + model
}

// Summarize sends prompt to the model with the given decoding parameters and
// returns the first generated sequence.
func (c *Client) Summarize(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("inference: prompt must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(generateRequest{
		Inputs: prompt,
		Parameters: generateParams{
			MinLength:      cfg.MinLength,
			MaxLength:      cfg.MaxLength,
			LengthPenalty:  cfg.LengthPenalty,
			NumBeams:       cfg.NumBeams,
			EarlyStopping:  cfg.EarlyStopping,
			DoSample:       false,
			Truncation:     "only_first",
			MaxInputLength: cfg.MaxInputTokens,
		},
		Options: generateOptions{WaitForModel: true, UseCache: true},
	})
	if err != nil {
		return "", fmt.Errorf("inference: marshal request: %w", err)
	}

	endpoint := modelURL(c.baseURL, c.model)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("inference: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	raw, err := c.doJSONRequest(req, endpoint)
	if err != nil {
		return "", fmt.Errorf("inference: request failed: %w", err)
	}

	var payload []generation
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("inference: decode response: %w", decErr)
	}
	if len(payload) == 0 {
		return "", errors.New("inference: no generations in response")
	}
	summary := strings.TrimSpace(payload[0].SummaryText)
	if summary == "" {
		summary = strings.TrimSpace(payload[0].GeneratedText)
	}
	if summary == "" {
		return "", errors.New("inference: empty generation")
	}
	return summary, nil
}

func (c *Client) doJSONRequest(req *http.Request, endpoint string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("inference: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("inference: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("inference: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("inference: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("inference: API token is empty")
	}
	return tp.Token, nil
}
