// CLAUDE:SUMMARY Parses model HTML output into labeled, pixel-space layout blocks with bbox denormalization.
// Package layout turns the raw HTML emitted by the OCR model into an ordered
// list of labeled, bounding-boxed blocks, and cleans that HTML for downstream
// rendering.
//
// The model encodes one layout block per top-level <div>, with a data-bbox
// attribute normalized to [0, bboxScale] and a data-label attribute naming the
// block type. Document order of the divs defines reading order.
package layout

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultBBoxScale is the normalization denominator used by the model to
// encode coordinates independently of the actual page resolution.
const DefaultBBoxScale = 1024

// Block labels emitted by the model that receive special treatment.
const (
	LabelPageHeader = "Page-Header"
	LabelPageFooter = "Page-Footer"
	LabelImage      = "Image"
	LabelFigure     = "Figure"
	LabelText       = "Text"
)

// Block is one labeled region of a page in pixel space.
type Block struct {
	BBox    [4]int `json:"bbox"`    // x0, y0, x1, y1 in page pixels
	Label   string `json:"label"`   // data-label, "block" if absent
	Content string `json:"content"` // inner markup, serialized verbatim
}

// IsImage reports whether the block holds a cropped page region.
func (b *Block) IsImage() bool {
	return b.Label == LabelImage || b.Label == LabelFigure
}

// ParseLayout extracts layout blocks from raw model HTML.
//
// Coordinates are scaled per axis by imageDimension/bboxScale, truncated, and
// clamped to the page bounds. A missing or malformed data-bbox degrades to the
// unit box [0,0,1,1]; malformed input never produces an error.
func ParseLayout(rawHTML string, width, height, bboxScale int) []Block {
	if bboxScale <= 0 {
		bboxScale = DefaultBBoxScale
	}
	widthScaler := float64(width) / float64(bboxScale)
	heightScaler := float64(height) / float64(bboxScale)

	var blocks []Block
	for _, div := range topLevelDivs(rawHTML) {
		coords := parseBBox(attr(div, "data-bbox"))
		bbox := [4]int{
			max(0, int(coords[0]*widthScaler)),
			max(0, int(coords[1]*heightScaler)),
			min(int(coords[2]*widthScaler), width),
			min(int(coords[3]*heightScaler), height),
		}
		label := attr(div, "data-label")
		if label == "" {
			label = "block"
		}
		blocks = append(blocks, Block{
			BBox:    bbox,
			Label:   label,
			Content: innerHTML(div),
		})
	}
	return blocks
}

// parseBBox accepts a 4-element JSON array or four space-separated numbers.
// Coordinates are truncated to integers before scaling. Anything else
// degrades to the unit box.
func parseBBox(raw string) [4]float64 {
	unit := [4]float64{0, 0, 1, 1}

	var arr []float64
	if err := json.Unmarshal([]byte(raw), &arr); err == nil && len(arr) == 4 {
		return [4]float64{math.Trunc(arr[0]), math.Trunc(arr[1]), math.Trunc(arr[2]), math.Trunc(arr[3])}
	}

	fields := strings.Fields(raw)
	if len(fields) != 4 {
		return unit
	}
	var out [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return unit
		}
		out[i] = math.Trunc(v)
	}
	return out
}

// topLevelDivs parses a fragment and returns the direct <div> children of the
// body. Nested divs are content, not layout units.
func topLevelDivs(rawHTML string) []*html.Node {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return nil
	}
	var divs []*html.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Div {
			divs = append(divs, c)
		}
	}
	return divs
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// findDescendant returns the first descendant element matching a, depth-first.
func findDescendant(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if found := findDescendant(c, a); found != nil {
			return found
		}
	}
	return nil
}

// innerHTML serializes the children of n without the wrapping element.
func innerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// attr returns the value of the named attribute, or "" when absent.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// hasElementChild reports whether n has any element among its children.
// A text-only block has none.
func hasElementChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}
