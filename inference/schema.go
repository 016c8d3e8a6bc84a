// CLAUDE:SUMMARY Request/result types for generation plus the OpenAI-compatible chat-completion wire shapes.
package inference

import "image"

// GenerationRequest is one page to OCR. Either Prompt or PromptType is set;
// an explicit Prompt wins. The image is owned by the caller and read-only
// here.
type GenerationRequest struct {
	Image      image.Image
	Prompt     string
	PromptType PromptType
}

// GenerationResult is the outcome of one settled generation. A transport
// failure surfaces as Failed=true with empty text, never as an error that
// aborts the batch.
type GenerationResult struct {
	Raw        string `json:"raw"`
	TokenCount int    `json:"token_count"`
	Failed     bool   `json:"failed"`
}

// SamplingParams select deterministic or stochastic decoding for an attempt.
type SamplingParams struct {
	Temperature float64
	TopP        float64
}

// Deterministic sampling for first attempts; retries perturb sampling to
// escape degenerate loops.
var (
	deterministicSampling = SamplingParams{Temperature: 0, TopP: 0.1}
	retrySampling         = SamplingParams{Temperature: 0.3, TopP: 0.95}
)

// chatRequest is the OpenAI-compatible chat-completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// modelsResponse is the GET /models listing used for model autodiscovery.
type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}
