// Package inspect reads a finished booklet back with an independent PDF
// parser to check it has the expected shape.
package inspect

import (
	"fmt"
	"os"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/reader"

	"github.com/local/bookletd/internal/booklet"
)

// Report summarises a PDF.
type Report struct {
	Pages int `json:"pages"`
	// FirstPageText is the extracted text of page 1, whitespace-collapsed.
	FirstPageText string `json:"first_page_text"`
	Warnings      int    `json:"warnings"`
}

// Inspect parses pdf and extracts the text of its first page.
func Inspect(pdf []byte) (*Report, error) {
	f, err := os.CreateTemp("", "booklet-inspect-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(pdf); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	r, err := reader.Open(f.Name())
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer r.Close()

	n, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	rep := &Report{Pages: n}
	if n == 0 {
		return rep, nil
	}
	text, warns, err := tabula.FromReader(r).Pages(1).Text()
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	rep.FirstPageText = strings.Join(strings.Fields(text), " ")
	rep.Warnings = len(warns)
	return rep, nil
}

// ExpectedSheets is the number of output sheets a run over an n-page input
// produces.
func ExpectedSheets(mode booklet.Mode, n, foldFactor int) int {
	if n <= 0 {
		return 0
	}
	switch mode {
	case booklet.ModeA:
		return (n + booklet.SlotsPerSheet - 1) / booklet.SlotsPerSheet
	case booklet.ModeB:
		if foldFactor <= 0 {
			foldFactor = booklet.DefaultFoldFactor
		}
		return booklet.PaddedCount(n, foldFactor) / booklet.SlotsPerSheet
	}
	return 0
}

// SheetCountError reports a booklet with the wrong number of sheets.
type SheetCountError struct {
	Got, Want int
}

func (e *SheetCountError) Error() string {
	return fmt.Sprintf("booklet has %d sheets, want %d", e.Got, e.Want)
}

// Verify inspects a booklet and checks its sheet count against the input.
func Verify(pdf []byte, mode booklet.Mode, inputPages, foldFactor int) (*Report, error) {
	rep, err := Inspect(pdf)
	if err != nil {
		return nil, err
	}
	if want := ExpectedSheets(mode, inputPages, foldFactor); rep.Pages != want {
		return rep, &SheetCountError{Got: rep.Pages, Want: want}
	}
	return rep, nil
}
