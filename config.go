// CLAUDE:SUMMARY Pipeline configuration: bbox scale, content filters, markdown and dispatch settings.
package ocrpipe

import (
	"log/slog"

	"github.com/hazyhaar/ocrpipe/inference"
	"github.com/hazyhaar/ocrpipe/layout"
	"github.com/hazyhaar/ocrpipe/markdown"
)

// Config configures the pipeline.
type Config struct {
	// BBoxScale is the normalization denominator of model coordinates.
	// Default: 1024.
	BBoxScale int `yaml:"bbox_scale"`

	// IncludeImages keeps Image/Figure blocks and extracts their crops.
	IncludeImages bool `yaml:"include_images"`

	// IncludeHeadersFooters keeps Page-Header/Page-Footer blocks.
	IncludeHeadersFooters bool `yaml:"include_headers_footers"`

	// EnforceWhitelist applies the prompt-contract tag whitelist to the
	// sanitized HTML. The model usually honors its contract; this is for
	// callers serving the HTML to browsers.
	EnforceWhitelist bool `yaml:"enforce_whitelist"`

	// Markdown settings (math delimiters).
	Markdown markdown.Options `yaml:"markdown"`

	// Repeat tunes the degenerate-output heuristic.
	Repeat markdown.RepeatOptions `yaml:"repeat"`

	// Dispatch settings (workers, retry budgets, backoff).
	Dispatch inference.DispatchConfig `yaml:"dispatch"`

	// Logger for pipeline events.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the configuration matching the model's defaults:
// images included, headers and footers dropped.
func DefaultConfig() Config {
	return Config{
		BBoxScale:     layout.DefaultBBoxScale,
		IncludeImages: true,
	}
}

func (c *Config) defaults() {
	if c.BBoxScale <= 0 {
		c.BBoxScale = layout.DefaultBBoxScale
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Markdown.Logger == nil {
		c.Markdown.Logger = c.Logger
	}
	if c.Dispatch.Logger == nil {
		c.Dispatch.Logger = c.Logger
	}
}
