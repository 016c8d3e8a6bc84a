// CLAUDE:SUMMARY OutputRecord: the per-page result combining markdown, HTML, chunks, crops, and status.
package ocrpipe

import (
	"image"

	"github.com/hazyhaar/ocrpipe/layout"
)

// OutputRecord is the externally visible unit of work, one per input page.
// It is immutable once assembled.
type OutputRecord struct {
	// Markdown rendering of the page.
	Markdown string `json:"markdown"`
	// HTML is the sanitized page HTML.
	HTML string `json:"html"`
	// Chunks are the layout blocks in reading order, in pixel space.
	Chunks []layout.Block `json:"chunks"`
	// Raw is the unprocessed model output.
	Raw string `json:"raw"`
	// PageBox is the full page extent: [0, 0, width, height].
	PageBox [4]int `json:"page_box"`
	// TokenCount is the completion token count of the settled generation.
	TokenCount int `json:"token_count"`
	// Images maps generated names to cropped page regions. Keys match the
	// src attributes in HTML. Nil when images are excluded.
	Images map[string]image.Image `json:"-"`
	// Failed marks an item whose generation exhausted its retry budget on
	// transport failures. Content fields are empty or degraded; callers
	// must inspect this flag.
	Failed bool `json:"failed"`
}
