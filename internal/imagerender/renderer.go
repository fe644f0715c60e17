// Package imagerender rasterises booklet sheets for previews.
package imagerender

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Options controls preview rendering.
type Options struct {
	DPI     float64
	Quality int
	Color   ColorMode
}

// Renderer turns pages of an in-memory PDF into JPEGs.
type Renderer struct {
	opts Options
}

func New(opts Options) *Renderer {
	if opts.DPI <= 0 {
		opts.DPI = 72
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	if opts.Color == "" {
		opts.Color = ColorRGB
	}
	return &Renderer{opts: opts}
}

// PageRangeError is returned for a page number outside the document.
type PageRangeError struct {
	Page  int
	Pages int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page %d out of range (document has %d)", e.Page, e.Pages)
}

// RenderJPEG renders 1-based page pageNum of pdf.
// Returns JPEG bytes, width, height, error
func (r *Renderer) RenderJPEG(pdf []byte, pageNum int) ([]byte, int, int, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.NumPage() {
		return nil, 0, 0, &PageRangeError{Page: pageNum, Pages: doc.NumPage()}
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, r.opts.DPI)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}
	bounds := img.Bounds()

	var finalImg image.Image = img
	if r.opts.Color == ColorGray {
		grayImg := image.NewGray(bounds)
		draw.Draw(grayImg, bounds, img, image.Point{}, draw.Src)
		finalImg = grayImg
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, finalImg, &jpeg.Options{Quality: r.opts.Quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("page", pageNum).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Str("color", string(r.opts.Color)).
		Int("jpeg_size", buf.Len()).
		Msg("rendered preview")

	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

// Probe checks that MuPDF can open and render pdf.
func (r *Renderer) Probe(pdf []byte) error {
	_, _, _, err := r.RenderJPEG(pdf, 1)
	return err
}

// GetImageDimensions extracts dimensions from JPEG bytes
func GetImageDimensions(jpegBytes []byte) (width, height int, err error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode JPEG: %w", err)
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
