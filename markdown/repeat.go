// CLAUDE:SUMMARY Heuristic detection of degenerate looping output via tail repeat counting with inverse-length scaling.
package markdown

import "log/slog"

// RepeatOptions tunes the degenerate-output heuristic.
type RepeatOptions struct {
	// BaseMaxRepeats is the allowed repeat count before inverse-length
	// scaling. Default: 4.
	BaseMaxRepeats int
	// WindowSize bounds candidate repeat units; lengths 1..WindowSize/2 are
	// tested. Default: 500.
	WindowSize int
	// ScalingFactor raises the ceiling for short units: shorter units repeat
	// legitimately more often. Default: 3.0.
	ScalingFactor float64
}

func (o *RepeatOptions) defaults() {
	if o.BaseMaxRepeats <= 0 {
		o.BaseMaxRepeats = 4
	}
	if o.WindowSize <= 0 {
		o.WindowSize = 500
	}
	if o.ScalingFactor <= 0 {
		o.ScalingFactor = 3.0
	}
}

// rawConverter is the slice of Converter the detector needs.
type rawConverter interface {
	Convert(rawHTML string, includeHeadersFooters, includeImages bool) (string, error)
}

// RepeatDetector flags generation output stuck in a repetition loop.
//
// Detection runs on the Markdown rendering of the raw output, so HTML
// boilerplate (attributes, closing tags) cannot mask or mimic repetition in
// the visible text.
type RepeatDetector struct {
	conv   rawConverter
	opts   RepeatOptions
	logger *slog.Logger
}

// NewRepeatDetector creates a detector backed by the given converter.
func NewRepeatDetector(conv *Converter, opts RepeatOptions) *RepeatDetector {
	opts.defaults()
	return &RepeatDetector{conv: conv, opts: opts, logger: converterLogger(conv)}
}

func converterLogger(conv *Converter) *slog.Logger {
	if conv != nil && conv.opts.Logger != nil {
		return conv.opts.Logger
	}
	return slog.Default()
}

// DegenerateRaw converts raw model HTML to Markdown and runs the repeat
// heuristic on the result. cutFromEnd characters are dropped from the tail
// first. A conversion failure counts as degenerate: unconvertible output is
// retried rather than trusted.
func (d *RepeatDetector) DegenerateRaw(raw string, cutFromEnd int) bool {
	md, err := d.conv.Convert(raw, false, true)
	if err != nil {
		d.logger.Warn("repeat: markdown conversion failed, treating as degenerate", "error", err)
		return true
	}
	return Degenerate(md, cutFromEnd, d.opts)
}

// Degenerate reports whether text ends in pathological repetition.
//
// For every candidate unit length L in 1..WindowSize/2, the last L characters
// are the candidate unit and the allowed ceiling is
// floor(BaseMaxRepeats * (1 + ScalingFactor/L)). Scanning backward from the
// end in steps of L, the count of consecutive exact occurrences is compared
// against the ceiling; the first length that exceeds it short-circuits.
func Degenerate(text string, cutFromEnd int, opts RepeatOptions) bool {
	opts.defaults()

	runes := []rune(text)
	if cutFromEnd > 0 {
		if cutFromEnd >= len(runes) {
			return false
		}
		runes = runes[:len(runes)-cutFromEnd]
	}

	for seqLen := 1; seqLen <= opts.WindowSize/2; seqLen++ {
		pos := len(runes) - seqLen
		if pos < 0 {
			continue
		}
		candidate := string(runes[len(runes)-seqLen:])
		maxRepeats := int(float64(opts.BaseMaxRepeats) * (1 + opts.ScalingFactor/float64(seqLen)))

		repeats := 0
		for pos >= 0 && string(runes[pos:pos+seqLen]) == candidate {
			repeats++
			pos -= seqLen
		}
		if repeats > maxRepeats {
			return true
		}
	}
	return false
}
