// Package generation calls the external text-completion service that turns a
// prompt into candidate query text.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultEndpoint          = "https://api.together.xyz/inference"
	DefaultModel             = "mistralai/Mixtral-8x7B-Instruct-v0.1"
	DefaultMaxOutputTokens   = 512
	DefaultTemperature       = 0.7
	DefaultTopP              = 0.7
	DefaultTopK              = 50
	DefaultRepetitionPenalty = 1.0
	DefaultTimeout           = 30 * time.Second
)

var ErrNoCompletions = errors.New("no choices found in the response")

// UpstreamUnavailableError reports that the service could not be reached or
// did not answer within the timeout.
type UpstreamUnavailableError struct {
	Err error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("generation service unavailable: %v", e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API Error: %d\n%s", e.StatusCode, e.Body)
}

type Config struct {
	Endpoint          string
	APIKey            string
	Model             string
	MaxOutputTokens   int
	Temperature       float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64
	StopSequences     []string
	Timeout           time.Duration
}

// DefaultConfig returns the decoding parameters the service is tuned for.
func DefaultConfig() Config {
	return Config{
		Endpoint:          DefaultEndpoint,
		Model:             DefaultModel,
		MaxOutputTokens:   DefaultMaxOutputTokens,
		Temperature:       DefaultTemperature,
		TopP:              DefaultTopP,
		TopK:              DefaultTopK,
		RepetitionPenalty: DefaultRepetitionPenalty,
		StopSequences:     DefaultStopSequences(),
		Timeout:           DefaultTimeout,
	}
}

func DefaultStopSequences() []string {
	return []string{"</s>", "[/INST]"}
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, fmt.Errorf("endpoint must be an http(s) URL: %q", cfg.Endpoint)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	switch {
	case cfg.Temperature < 0:
		return nil, fmt.Errorf("temperature must be > 0")
	case cfg.Temperature == 0:
		cfg.Temperature = DefaultTemperature
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("top_k must be >= 0")
	}
	if len(cfg.StopSequences) == 0 {
		cfg.StopSequences = DefaultStopSequences()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

type inferenceRequest struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	MaxTokens         int      `json:"max_tokens"`
	Stop              []string `json:"stop"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	TopK              int      `json:"top_k"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	N                 int      `json:"n"`
}

type choice struct {
	Text string `json:"text"`
}

type inferenceResponse struct {
	Output struct {
		Choices []choice `json:"choices"`
	} `json:"output"`
	Choices []choice `json:"choices"`
}

// Generate sends one completion request and returns the first choice's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(inferenceRequest{
		Model:             c.cfg.Model,
		Prompt:            WrapInstruction(prompt),
		MaxTokens:         c.cfg.MaxOutputTokens,
		Stop:              c.cfg.StopSequences,
		Temperature:       c.cfg.Temperature,
		TopP:              c.cfg.TopP,
		TopK:              c.cfg.TopK,
		RepetitionPenalty: c.cfg.RepetitionPenalty,
		N:                 1,
	})
	if err != nil {
		return "", fmt.Errorf("marshal inference payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build inference request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &UpstreamUnavailableError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamUnavailableError{Err: fmt.Errorf("read inference response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(rawRespBody)}
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode inference response: %w", err)
	}
	choices := parsed.Output.Choices
	if len(choices) == 0 {
		choices = parsed.Choices
	}
	if len(choices) == 0 {
		return "", ErrNoCompletions
	}
	return strings.TrimSpace(choices[0].Text), nil
}

// WrapInstruction frames prompt as a single instruction turn.
func WrapInstruction(prompt string) string {
	return "<s>[INST] " + prompt + " [/INST]"
}
