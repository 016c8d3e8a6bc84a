// CLAUDE:SUMMARY Wire types for the OCR HTTP API.
package server

import "github.com/hazyhaar/ocrpipe/layout"

// OCRRequest is the body for POST /v1/ocr.
type OCRRequest struct {
	Pages []PageRequest `json:"pages"`
}

// PageRequest is one page to OCR. ImageB64 holds the raster (PNG or JPEG),
// standard base64. Prompt overrides PromptType; with neither set the layout
// prompt is used.
type PageRequest struct {
	ImageB64   string `json:"image_b64"`
	Prompt     string `json:"prompt,omitempty"`
	PromptType string `json:"prompt_type,omitempty"`
}

// OCRResponse is the body for a successful POST /v1/ocr.
type OCRResponse struct {
	Pages []PageResponse `json:"pages"`
}

// PageResponse mirrors ocrpipe.OutputRecord with crops encoded for transport.
type PageResponse struct {
	Markdown   string            `json:"markdown"`
	HTML       string            `json:"html"`
	Chunks     []layout.Block    `json:"chunks"`
	Raw        string            `json:"raw"`
	PageBox    [4]int            `json:"page_box"`
	TokenCount int               `json:"token_count"`
	Images     map[string]string `json:"images,omitempty"` // name -> PNG data URI
	Failed     bool              `json:"failed"`
}

type errorResponse struct {
	Error string `json:"error"`
}
