// CLAUDE:SUMMARY Pipeline: dispatches OCR batches and assembles markdown, HTML, chunks, and crops per page.
// Package ocrpipe turns page images into structured OCR output.
//
// A Pipeline sends batches of pages to a vision OCR model through an
// injected generation capability, then post-processes each raw result into
// Markdown, cleaned HTML, pixel-space layout blocks, and cropped sub-images.
// The pipeline is stateless between calls and safe for concurrent use.
package ocrpipe

import (
	"context"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/ocrpipe/imaging"
	"github.com/hazyhaar/ocrpipe/inference"
	"github.com/hazyhaar/ocrpipe/layout"
	"github.com/hazyhaar/ocrpipe/markdown"
)

// Pipeline assembles OCR output records from generation results.
type Pipeline struct {
	dispatcher *inference.Dispatcher
	converter  *markdown.Converter
	policy     *bluemonday.Policy // nil unless EnforceWhitelist
	config     Config
}

// New creates a Pipeline around a generation capability. The generator is an
// explicit dependency: typically an inference.Client, or a stub in tests.
func New(gen inference.Generator, cfg Config) (*Pipeline, error) {
	if gen == nil {
		return nil, ErrNilGenerator
	}
	cfg.defaults()

	converter := markdown.New(cfg.Markdown)
	detector := markdown.NewRepeatDetector(converter, cfg.Repeat)
	p := &Pipeline{
		dispatcher: inference.NewDispatcher(gen, detector, cfg.Dispatch),
		converter:  converter,
		config:     cfg,
	}
	if cfg.EnforceWhitelist {
		p.policy = layout.StrictPolicy()
	}
	return p, nil
}

// Process OCRs a batch of pages. It returns exactly one record per request,
// in request order. Individual failures surface in the record's Failed flag;
// Process itself never fails on a bad page.
func (p *Pipeline) Process(ctx context.Context, requests []inference.GenerationRequest) []OutputRecord {
	results := p.dispatcher.Dispatch(ctx, requests)

	records := make([]OutputRecord, len(results))
	for i, result := range results {
		records[i] = p.assemble(requests[i], result)
	}
	return records
}

// assemble builds the output record for one settled generation.
func (p *Pipeline) assemble(req inference.GenerationRequest, result inference.GenerationResult) OutputRecord {
	var width, height int
	if req.Image != nil {
		bounds := req.Image.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	}

	chunks := layout.ParseLayout(result.Raw, width, height, p.config.BBoxScale)

	cleaned := layout.SanitizeHTML(result.Raw, p.config.IncludeHeadersFooters, p.config.IncludeImages)
	if p.policy != nil {
		cleaned = p.policy.Sanitize(cleaned)
	}

	record := OutputRecord{
		Markdown:   p.converter.ConvertLenient(result.Raw, p.config.IncludeHeadersFooters, p.config.IncludeImages),
		HTML:       cleaned,
		Chunks:     chunks,
		Raw:        result.Raw,
		PageBox:    [4]int{0, 0, width, height},
		TokenCount: result.TokenCount,
		Failed:     result.Failed,
	}
	if p.config.IncludeImages && req.Image != nil {
		record.Images = imaging.ExtractBlockImages(result.Raw, chunks, req.Image)
	}
	return record
}
