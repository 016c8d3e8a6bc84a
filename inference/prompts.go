// CLAUDE:SUMMARY Built-in OCR prompt templates with bbox-scale substitution and the tag/attribute contract.
package inference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/ocrpipe/layout"
)

// PromptType selects a built-in prompt template.
type PromptType string

const (
	// PromptOCRLayout asks for layout blocks with bboxes and labels.
	PromptOCRLayout PromptType = "ocr_layout"
	// PromptOCR asks for plain HTML without layout structure.
	PromptOCR PromptType = "ocr"
)

// ErrUnknownPromptType is returned for a PromptType with no template.
var ErrUnknownPromptType = fmt.Errorf("inference: unknown prompt type")

const blockLabels = `- Caption
- Footnote
- Equation-Block
- List-Group
- Page-Header
- Page-Footer
- Image
- Section-Header
- Table
- Text
- Complex-Block
- Code-Block
- Form
- Table-Of-Contents
- Figure`

const promptGuidelines = `Guidelines:
* Inline math: Surround math with <math>...</math> tags. Math expressions should be rendered in KaTeX-compatible LaTeX. Use display for block math.
* Tables: Use colspan and rowspan attributes to match table structure.
* Formatting: Maintain consistent formatting with the image, including spacing, indentation, subscripts/superscripts, and special characters.
* Images: Include a description of any images in the alt attribute of an <img> tag. Do not fill out the src property.
* Forms: Mark checkboxes and radio buttons properly.
* Text: join lines together properly into paragraphs using <p>...</p> tags.  Use <br> tags for line breaks within paragraphs, but only when absolutely necessary to maintain meaning.
* Use the simplest possible HTML structure that accurately represents the content of the block.
* Make sure the text is accurate and easy for a human to read and interpret.  Reading order should be correct and natural.`

// BuildPrompt renders the template for the given type with the bbox scale
// substituted. The allowed tag and attribute lists are part of the contract
// the sanitizer depends on, so they come from the layout package.
func BuildPrompt(pt PromptType, bboxScale int) (string, error) {
	if bboxScale <= 0 {
		bboxScale = layout.DefaultBBoxScale
	}
	ending := fmt.Sprintf("Only use these tags [%s], and these attributes [%s].\n\n%s",
		strings.Join(layout.AllowedTags, ", "),
		strings.Join(layout.AllowedAttributes, ", "),
		promptGuidelines)

	switch pt {
	case PromptOCRLayout:
		head := "OCR this image to HTML, arranged as layout blocks.  Each layout block should be a div with the data-bbox attribute representing the bounding box of the block in [x0, y0, x1, y1] format.  Bboxes are normalized 0-" +
			strconv.Itoa(bboxScale) +
			". The data-label attribute is the label for the block.\n\nUse the following labels:\n" + blockLabels
		return head + "\n\n" + ending, nil
	case PromptOCR:
		return "OCR this image to HTML.\n\n" + ending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPromptType, pt)
	}
}
