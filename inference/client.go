// CLAUDE:SUMMARY HTTP client for an OpenAI-compatible inference endpoint with model autodiscovery.
// Package inference talks to the remote OCR model and fans batches of pages
// out to it with bounded concurrency and per-item retries.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazyhaar/ocrpipe/imaging"
	"github.com/hazyhaar/ocrpipe/layout"
)

// Generator is the generation capability: one image plus one prompt in, raw
// model text out. Backed by the HTTP client here or by any test double.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest, params SamplingParams) (GenerationResult, error)
}

// ClientConfig configures the HTTP inference client.
type ClientConfig struct {
	// BaseURL of the OpenAI-compatible endpoint. Default: http://localhost:8000/v1.
	BaseURL string `yaml:"base_url"`
	// APIKey sent as a bearer token. Empty sends none.
	APIKey string `yaml:"api_key"`
	// Model name. Empty triggers autodiscovery via GET /models.
	Model string `yaml:"model"`
	// MaxOutputTokens caps generation length. Default: 12384.
	MaxOutputTokens int `yaml:"max_output_tokens"`
	// BBoxScale substituted into built-in prompts. Default: 1024.
	BBoxScale int `yaml:"bbox_scale"`
	// Timeout per HTTP request. Default: 5 minutes.
	Timeout time.Duration `yaml:"timeout"`
	// MaxConns bounds connections to the backend host. Default: 64.
	MaxConns int `yaml:"max_conns"`
	// Headers are extra headers sent with every request.
	Headers map[string]string `yaml:"headers"`
	// Logger for transport warnings.
	Logger *slog.Logger `yaml:"-"`
}

func (c *ClientConfig) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8000/v1"
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = 12384
	}
	if c.BBoxScale <= 0 {
		c.BBoxScale = layout.DefaultBBoxScale
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 64
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client calls an OpenAI-compatible chat-completion endpoint with an image
// payload. The underlying connection pool is shared and safe for concurrent
// use by dispatcher workers.
type Client struct {
	config ClientConfig
	http   *http.Client

	modelMu sync.Mutex
	model   string
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	cfg.defaults()
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     cfg.MaxConns,
		MaxIdleConnsPerHost: cfg.MaxConns,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Transport: transport},
	}
}

// Generate sends one image+prompt to the backend and returns the raw text.
func (c *Client) Generate(ctx context.Context, req GenerationRequest, params SamplingParams) (GenerationResult, error) {
	prompt := req.Prompt
	if prompt == "" {
		pt := req.PromptType
		if pt == "" {
			pt = PromptOCRLayout
		}
		var err error
		prompt, err = BuildPrompt(pt, c.config.BBoxScale)
		if err != nil {
			return GenerationResult{Failed: true}, err
		}
	}

	model, err := c.resolveModel(ctx)
	if err != nil {
		return GenerationResult{Failed: true}, fmt.Errorf("resolve model: %w", err)
	}

	dataURI, err := imaging.EncodePNGDataURI(imaging.ScaleToFit(req.Image))
	if err != nil {
		return GenerationResult{Failed: true}, fmt.Errorf("encode image: %w", err)
	}

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
				{Type: "text", Text: prompt},
			},
		}},
		MaxTokens:   c.config.MaxOutputTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}

	var parsed chatResponse
	if err := c.postJSON(ctx, "/chat/completions", body, &parsed); err != nil {
		return GenerationResult{Failed: true}, err
	}
	if len(parsed.Choices) == 0 {
		return GenerationResult{Failed: true}, fmt.Errorf("backend returned no choices")
	}
	return GenerationResult{
		Raw:        parsed.Choices[0].Message.Content,
		TokenCount: parsed.Usage.CompletionTokens,
	}, nil
}

// resolveModel returns the configured model name, asking the backend for its
// first served model when none is configured. Only success is cached: a
// failed listing is retried on the next call, so a backend that was briefly
// down during the first attempt cannot wedge the client.
func (c *Client) resolveModel(ctx context.Context) (string, error) {
	if c.config.Model != "" {
		return c.config.Model, nil
	}
	c.modelMu.Lock()
	defer c.modelMu.Unlock()
	if c.model != "" {
		return c.model, nil
	}
	var models modelsResponse
	if err := c.getJSON(ctx, "/models", &models); err != nil {
		return "", err
	}
	if len(models.Data) == 0 {
		return "", fmt.Errorf("backend serves no models")
	}
	c.model = models.Data[0].ID
	return c.model, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("backend http %d: %s", resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
