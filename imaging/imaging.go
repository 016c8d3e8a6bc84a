// CLAUDE:SUMMARY Page-image helpers: block cropping by bbox, area-preserving scale-to-fit, PNG data URIs.
// Package imaging crops layout-block images out of page rasters and prepares
// page images for transport to the inference backend.
package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/draw"
	"image/png"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/ocrpipe/layout"
)

// Backend input limits. Pages outside this pixel-count window are resampled
// before upload; the model was trained within it.
var (
	maxFitSize = image.Point{X: 3072, Y: 2048}
	minFitSize = image.Point{X: 28, Y: 28}
)

// ExtractBlockImages crops the page image for every Image/Figure block whose
// content carries an <img> element. Keys are the deterministic names produced
// by layout.ImageName over the same 1-based block numbering, so they match
// the src attributes written by the sanitizer. Blocks with invalid or empty
// crop regions are skipped.
func ExtractBlockImages(rawHTML string, blocks []layout.Block, page image.Image) map[string]image.Image {
	images := make(map[string]image.Image)
	for i, block := range blocks {
		divIdx := i + 1
		if !block.IsImage() || !containsImg(block.Content) {
			continue
		}
		// image.Rect would silently swap an inverted box; treat it as
		// invalid instead, like an out-of-range one.
		if block.BBox[2] <= block.BBox[0] || block.BBox[3] <= block.BBox[1] {
			continue
		}
		rect := image.Rect(block.BBox[0], block.BBox[1], block.BBox[2], block.BBox[3])
		rect = rect.Intersect(page.Bounds())
		if rect.Empty() {
			continue
		}
		images[layout.ImageName(rawHTML, divIdx)] = crop(page, rect)
	}
	return images
}

func crop(page image.Image, rect image.Rectangle) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), page, rect.Min, draw.Src)
	return out
}

func containsImg(content string) bool {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return false
	}
	var find func(*html.Node) bool
	find = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if find(c) {
				return true
			}
		}
		return false
	}
	return find(doc)
}

// ScaleToFit resamples img so its pixel count lands between the backend's
// minimum and maximum input sizes, preserving aspect ratio. Images already
// inside the window are returned unchanged.
func ScaleToFit(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return img
	}

	current := width * height
	maxPixels := maxFitSize.X * maxFitSize.Y
	minPixels := minFitSize.X * minFitSize.Y

	var newWidth, newHeight int
	switch {
	case current > maxPixels:
		factor := math.Sqrt(float64(maxPixels) / float64(current))
		newWidth = int(math.Floor(float64(width) * factor))
		newHeight = int(math.Floor(float64(height) * factor))
	case current < minPixels:
		factor := math.Sqrt(float64(minPixels) / float64(current))
		newWidth = int(math.Ceil(float64(width) * factor))
		newHeight = int(math.Ceil(float64(height) * factor))
	default:
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// EncodePNGDataURI encodes an image as a base64 PNG data URI for embedding in
// a chat-completion image payload.
func EncodePNGDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
