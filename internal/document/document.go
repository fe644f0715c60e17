// Package document is the in-memory page model the booklet pipeline works
// on. It offers the operations a PDF toolkit would (copy, add, embed, draw,
// remove) without touching bytes; an Engine turns the result into a file.
package document

import (
	"fmt"
	"sync"
)

// Size is a page size in PDF points.
type Size struct {
	Width  float64
	Height float64
}

// A4 in points.
var A4 = Size{Width: 595.28, Height: 841.89}

// Rect is a placement rectangle; X and Y are the lower-left corner.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// StandardFont names one of the PDF standard 14 fonts.
type StandardFont string

const (
	Helvetica     StandardFont = "Helvetica"
	HelveticaBold StandardFont = "Helvetica-Bold"
	TimesRoman    StandardFont = "Times-Roman"
	Courier       StandardFont = "Courier"
)

// Font is a font registered with a document.
type Font struct {
	Name StandardFont
	Key  string
}

// EmbeddedPage is a snapshot of a page that can be drawn, scaled, onto
// other pages of the document that embedded it.
type EmbeddedPage struct {
	Key  string
	page *Page
}

// Page returns the embedded snapshot.
func (e *EmbeddedPage) Page() *Page { return e.page }

// Document is an ordered list of pages. Pages, fonts and embeddings may be
// added from several goroutines; drawing onto a single page is not
// synchronised.
type Document struct {
	mu     sync.Mutex
	pages  []*Page
	fonts  map[StandardFont]*Font
	embeds int
}

// New returns an empty document.
func New() *Document {
	return &Document{fonts: make(map[StandardFont]*Font)}
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pages)
}

// Pages returns the pages in order. The slice is a copy.
func (d *Document) Pages() []*Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Page, len(d.pages))
	copy(out, d.pages)
	return out
}

// Page returns the page at 0-based index i.
func (d *Document) Page(i int) (*Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.pages) {
		return nil, &PageIndexError{Index: i, Count: len(d.pages)}
	}
	return d.pages[i], nil
}

// CopyPages returns independent copies of the pages at the given 0-based
// indices, in the order requested. The copies are not added to any
// document.
func (d *Document) CopyPages(indices ...int) ([]*Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Page, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(d.pages) {
			return nil, &PageIndexError{Index: i, Count: len(d.pages)}
		}
		out = append(out, d.pages[i].clone())
	}
	return out, nil
}

// AddPage appends p and returns it.
func (d *Document) AddPage(p *Page) *Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages = append(d.pages, p)
	return p
}

// AddBlankPage appends an empty page of the given size.
func (d *Document) AddBlankPage(size Size) *Page {
	return d.AddPage(&Page{index: -1, size: size})
}

// RemovePage deletes the page at 0-based index i.
func (d *Document) RemovePage(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.pages) {
		return &PageIndexError{Index: i, Count: len(d.pages)}
	}
	d.pages = append(d.pages[:i], d.pages[i+1:]...)
	return nil
}

// EmbedFont registers a standard font. Embedding the same font twice
// returns the same handle.
func (d *Document) EmbedFont(name StandardFont) (*Font, error) {
	switch name {
	case Helvetica, HelveticaBold, TimesRoman, Courier:
	default:
		return nil, fmt.Errorf("unsupported font %q", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.fonts[name]; ok {
		return f, nil
	}
	f := &Font{Name: name, Key: fmt.Sprintf("F%d", len(d.fonts)+1)}
	d.fonts[name] = f
	return f, nil
}

// EmbedPage takes a snapshot of p for drawing. Later changes to p are not
// visible through the embedding.
func (d *Document) EmbedPage(p *Page) (*EmbeddedPage, error) {
	if p == nil {
		return nil, fmt.Errorf("embed: nil page")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.embeds++
	return &EmbeddedPage{Key: fmt.Sprintf("Pg%d", d.embeds), page: p.clone()}, nil
}
