// CLAUDE:SUMMARY Pure HTML transform: drops headers/footers, rewrites img src to content-addressed names, wraps bare text.
package layout

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SanitizeHTML repairs and filters raw model HTML into renderable HTML.
//
// Per top-level block, in document order:
//   - Page-Header and Page-Footer blocks are dropped unless includeHeadersFooters.
//   - Image and Figure blocks are dropped unless includeImages; kept blocks get
//     exactly one <img> whose src is the deterministic generated name.
//   - Text blocks with no inner markup are wrapped in a <p>.
//   - The block's inner content is emitted, not the wrapping div.
//
// The transform is pure: parse, transform, serialize.
func SanitizeHTML(rawHTML string, includeHeadersFooters, includeImages bool) string {
	var out strings.Builder
	divIdx := 0
	for _, div := range topLevelDivs(rawHTML) {
		divIdx++
		label := attr(div, "data-label")

		if !includeHeadersFooters && (label == LabelPageHeader || label == LabelPageFooter) {
			continue
		}
		if !includeImages && (label == LabelImage || label == LabelFigure) {
			continue
		}

		if label == LabelImage || label == LabelFigure {
			name := ImageName(rawHTML, divIdx)
			if img := findDescendant(div, atom.Img); img != nil {
				setAttr(img, "src", name)
			} else {
				div.AppendChild(&html.Node{
					Type:     html.ElementNode,
					DataAtom: atom.Img,
					Data:     "img",
					Attr:     []html.Attribute{{Key: "src", Val: name}},
				})
			}
		}

		if label == LabelText && !hasElementChild(div) {
			out.WriteString("<p>")
			out.WriteString(strings.TrimSpace(innerHTML(div)))
			out.WriteString("</p>")
			continue
		}

		out.WriteString(innerHTML(div))
	}
	return out.String()
}
