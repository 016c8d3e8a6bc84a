// CLAUDE:SUMMARY HTML→Markdown conversion with math delimiters, raw table passthrough, and dollar escaping.
// Package markdown converts sanitized model HTML into Markdown.
//
// Conversion runs on html-to-markdown with a few fixed deviations from its
// defaults: <math> elements render between configurable dollar delimiters,
// tables pass through as raw HTML, literal dollars and link-text brackets are
// backslash-escaped so they cannot be misread as math or link syntax.
package markdown

import (
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/ocrpipe/layout"
)

// Options configures the converter.
type Options struct {
	// InlineMathDelimiters surround <math> content. Default: $ $.
	InlineMathDelimiters [2]string
	// BlockMathDelimiters surround <math display="block"> content. Default: $$ $$.
	BlockMathDelimiters [2]string
	// Logger for conversion warnings.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.InlineMathDelimiters == ([2]string{}) {
		o.InlineMathDelimiters = [2]string{"$", "$"}
	}
	if o.BlockMathDelimiters == ([2]string{}) {
		o.BlockMathDelimiters = [2]string{"$$", "$$"}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Converter turns raw or sanitized model HTML into Markdown.
type Converter struct {
	opts Options
	conv *converter.Converter
}

// New creates a Converter.
func New(opts Options) *Converter {
	opts.defaults()
	c := &Converter{opts: opts}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	conv.Register.RendererFor("math", converter.TagTypeInline, c.renderMath, converter.PriorityStandard)
	conv.Register.RendererFor("table", converter.TagTypeBlock, renderRawTable, converter.PriorityStandard)
	c.conv = conv
	return c
}

// Convert sanitizes raw model HTML and converts it to Markdown, trimmed of
// surrounding whitespace.
func (c *Converter) Convert(rawHTML string, includeHeadersFooters, includeImages bool) (string, error) {
	cleaned := layout.SanitizeHTML(rawHTML, includeHeadersFooters, includeImages)
	return c.ConvertCleaned(cleaned)
}

// ConvertLenient is Convert with conversion failures degraded to an empty
// string. Used where one bad page must not abort a batch.
func (c *Converter) ConvertLenient(rawHTML string, includeHeadersFooters, includeImages bool) string {
	md, err := c.Convert(rawHTML, includeHeadersFooters, includeImages)
	if err != nil {
		c.opts.Logger.Warn("markdown: conversion failed, emitting empty output", "error", err)
		return ""
	}
	return md
}

// ConvertCleaned converts already-sanitized HTML to Markdown.
func (c *Converter) ConvertCleaned(cleanedHTML string) (string, error) {
	masked, err := maskTextNodes(cleanedHTML)
	if err != nil {
		return "", err
	}
	md, err := c.conv.ConvertString(masked)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(unmask(md)), nil
}

func (c *Converter) renderMath(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	text := strings.TrimSpace(dom.CollectText(n))
	if dom.GetAttributeOr(n, "display", "") == "block" {
		w.WriteString("\n")
		w.WriteString(c.opts.BlockMathDelimiters[0])
		w.WriteString(text)
		w.WriteString(c.opts.BlockMathDelimiters[1])
		w.WriteString("\n")
	} else {
		w.WriteString(" ")
		w.WriteString(c.opts.InlineMathDelimiters[0])
		w.WriteString(text)
		w.WriteString(c.opts.InlineMathDelimiters[1])
		w.WriteString(" ")
	}
	return converter.RenderSuccess
}

// renderRawTable emits the table as raw HTML wrapped in blank lines instead
// of converting it to Markdown table syntax. Rowspan and colspan have no
// Markdown equivalent.
func renderRawTable(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return converter.RenderTryNext
	}
	w.WriteString("\n\n")
	w.WriteString(sb.String())
	w.WriteString("\n\n")
	return converter.RenderSuccess
}

// verbatimAtoms are subtrees whose text must not be escaped. Tables pass
// through as raw HTML, so their text stays verbatim too.
var verbatimAtoms = map[atom.Atom]bool{
	atom.Pre:   true,
	atom.Code:  true,
	atom.Kbd:   true,
	atom.Samp:  true,
	atom.Table: true,
}

// Characters that need a guaranteed backslash escape are masked with private
// use runes before conversion and unmasked afterwards. Escaping them directly
// in the HTML would expose the backslashes to the converter's own escaping.
const (
	maskDollar   = "\uE000"
	maskLBracket = "\uE001"
	maskRBracket = "\uE002"
	maskLParen   = "\uE003"
	maskRParen   = "\uE004"
)

var dollarMasker = strings.NewReplacer("$", maskDollar)

var linkTextMasker = strings.NewReplacer(
	"$", maskDollar,
	"[", maskLBracket,
	"]", maskRBracket,
	"(", maskLParen,
	")", maskRParen,
)

var unmasker = strings.NewReplacer(
	maskDollar, `\$`,
	maskLBracket, `\[`,
	maskRBracket, `\]`,
	maskLParen, `\(`,
	maskRParen, `\)`,
)

func unmask(md string) string {
	return unmasker.Replace(md)
}

// maskTextNodes masks literal dollars in all text nodes, and additionally
// brackets and parentheses inside link text, then re-serializes. Preformatted,
// code, math, and table subtrees are left untouched.
func maskTextNodes(cleanedHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(cleanedHTML))
	if err != nil {
		return "", err
	}

	var walk func(n *html.Node, verbatim, inLink bool)
	walk = func(n *html.Node, verbatim, inLink bool) {
		if n.Type == html.ElementNode {
			if verbatimAtoms[n.DataAtom] || n.Data == "math" {
				verbatim = true
			}
			if n.DataAtom == atom.A {
				inLink = true
			}
		}
		if n.Type == html.TextNode && !verbatim {
			if inLink {
				n.Data = linkTextMasker.Replace(n.Data)
			} else {
				n.Data = dollarMasker.Replace(n.Data)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, verbatim, inLink)
		}
	}
	walk(doc, false, false)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", err
	}
	return sb.String(), nil
}
