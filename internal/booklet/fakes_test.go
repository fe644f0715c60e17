package booklet

import (
	"context"
	"sync"
	"testing"

	"github.com/local/bookletd/internal/document"
)

var pdfInput = []byte("%PDF-1.7\n%fixture\n")

type fakeSource struct{ pages int }

func (s fakeSource) PageCount() int { return s.pages }

// fakeEngine parses any input as a document of pages pages and keeps the
// last document it was asked to render.
type fakeEngine struct {
	pages     int
	parseErr  error
	renderErr error

	mu       sync.Mutex
	rendered *document.Document
}

func (e *fakeEngine) Parse(ctx context.Context, data []byte) (document.Source, error) {
	if e.parseErr != nil {
		return nil, e.parseErr
	}
	return fakeSource{pages: e.pages}, nil
}

func (e *fakeEngine) Render(ctx context.Context, doc *document.Document) ([]byte, error) {
	if e.renderErr != nil {
		return nil, e.renderErr
	}
	e.mu.Lock()
	e.rendered = doc
	e.mu.Unlock()
	return []byte("%PDF-rendered"), nil
}

func loadFake(t testing.TB, pages int) *document.Document {
	t.Helper()
	doc, err := document.Load(context.Background(), &fakeEngine{pages: pages}, pdfInput)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}
