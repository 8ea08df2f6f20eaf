// Package genai is the boundary to the generative-model API. It sends a prompt
// with a JSON response schema and returns the raw JSON text the model produced.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	generatePath            = "/v1beta/models/{model}:generateContent"
)

var (
	// ErrEmptyResponse is returned when the model produced no usable candidate.
	ErrEmptyResponse = errors.New("model returned no content")
	// ErrBlocked is returned when the prompt was rejected by the model's safety filters.
	ErrBlocked = errors.New("prompt blocked by model")
	// ErrCircuitOpen is returned while the breaker rejects calls after repeated failures.
	ErrCircuitOpen = errors.New("model circuit breaker open")
)

// Config configures a Client. Zero values take defaults.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// BreakerThreshold is the number of consecutive failures that opens the breaker.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration

	// HTTPClient overrides the transport (tests inject a mock transport here).
	HTTPClient *http.Client
}

// Client calls the generateContent endpoint.
type Client struct {
	http    *resty.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

// New constructs a Client. Requests are never retried.
func New(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = defaultBreakerThreshold
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", cfg.APIKey)

	threshold := cfg.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "genai",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller giving up says nothing about the model's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("model circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return &Client{http: rc, model: cfg.Model, breaker: breaker, log: log}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateJSON sends prompt constrained by schema and returns the model's JSON text.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *Schema) ([]byte, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generate(ctx, prompt, schema)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}

	text, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T from circuit breaker", out)
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt string, schema *Schema) ([]byte, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
			Temperature:      0.2,
		},
	}

	var result generateResponse
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", c.model).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post(generatePath)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, fmt.Errorf("calling model %s: %w", c.model, ctxErr)
		}
		return nil, fmt.Errorf("calling model %s: %w", c.model, err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("model %s returned status %d (%s): %s",
			c.model, resp.StatusCode(), apiErr.Error.Status, apiErr.Error.Message)
	}

	if result.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, result.PromptFeedback.BlockReason)
	}

	if len(result.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, ErrEmptyResponse
	}

	c.log.Debug("model response received",
		"model", c.model,
		"finish_reason", result.Candidates[0].FinishReason,
		"bytes", len(text))

	return []byte(stripFence(text)), nil
}

// stripFence removes a markdown code fence some models wrap around JSON output.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
