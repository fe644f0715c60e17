package booklet

import (
	"fmt"

	"github.com/local/bookletd/internal/document"
)

// DefaultFoldFactor is the page multiple a split booklet is padded to.
const DefaultFoldFactor = 8

// Blank page label position and size, in points.
const (
	blankLabelX    = 200
	blankLabelY    = 400
	blankLabelSize = 12
)

// PaddedCount returns the smallest multiple of factor that is >= m.
func PaddedCount(m, factor int) int {
	if factor <= 0 || m <= 0 {
		return m
	}
	if r := m % factor; r != 0 {
		return m + factor - r
	}
	return m
}

// BlankLabel is the text drawn on the padding page at 1-based position n.
func BlankLabel(n int) string {
	return fmt.Sprintf("Blank Page — Page %d", n)
}

// Normalize copies every page of doc, in order, into a new document and
// appends labelled blank pages of the given size until the count is a
// multiple of factor. It returns the new document and how many blanks were
// added; doc itself is left untouched.
func Normalize(doc *document.Document, factor int, size document.Size) (*document.Document, int, error) {
	if factor <= 0 {
		return nil, 0, fmt.Errorf("normalize: fold factor must be positive, got %d", factor)
	}
	indices := make([]int, doc.PageCount())
	for i := range indices {
		indices[i] = i
	}
	copies, err := doc.CopyPages(indices...)
	if err != nil {
		return nil, 0, fmt.Errorf("normalize: %w", err)
	}

	out := document.New()
	for _, p := range copies {
		out.AddPage(p)
	}

	var font *document.Font
	added := 0
	for out.PageCount()%factor != 0 {
		if font == nil {
			if font, err = out.EmbedFont(document.Helvetica); err != nil {
				return nil, 0, fmt.Errorf("normalize: %w", err)
			}
		}
		n := out.PageCount() + 1
		out.AddBlankPage(size).DrawText(BlankLabel(n), blankLabelX, blankLabelY, font, blankLabelSize)
		added++
	}
	return out, added, nil
}
