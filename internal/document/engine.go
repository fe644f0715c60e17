package document

import (
	"context"
	"errors"
)

// Source is a parsed input file held by an Engine. Pages of a loaded
// Document refer back to it by 0-based index.
type Source interface {
	PageCount() int
}

// Engine parses and serialises documents. The pdfcpu-backed implementation
// lives in internal/pdfengine; tests substitute in-memory fakes.
type Engine interface {
	Parse(ctx context.Context, data []byte) (Source, error)
	Render(ctx context.Context, doc *Document) ([]byte, error)
}

// Load parses data and returns a document whose pages refer to the parsed
// source in order. Engine failures are reported as *ParseError.
func Load(ctx context.Context, eng Engine, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, &ParseError{Err: errors.New("empty input")}
	}
	src, err := eng.Parse(ctx, data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &ParseError{Err: err}
	}
	doc := New()
	for i := 0; i < src.PageCount(); i++ {
		doc.pages = append(doc.pages, &Page{src: src, index: i})
	}
	return doc, nil
}

// Save serialises doc. Engine failures are reported as *SerializationError.
func Save(ctx context.Context, eng Engine, doc *Document) ([]byte, error) {
	if doc.PageCount() == 0 {
		return nil, &SerializationError{Err: errors.New("document has no pages")}
	}
	out, err := eng.Render(ctx, doc)
	if err != nil {
		var se *SerializationError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &SerializationError{Err: err}
	}
	return out, nil
}
