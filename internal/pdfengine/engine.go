// Package pdfengine reads and writes PDF files for the document model using
// pdfcpu. Embedded pages are drawn as form XObjects built from the source
// page's content stream and resources.
package pdfengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/local/bookletd/internal/document"
)

// Engine implements document.Engine.
type Engine struct {
	// Password opens encrypted input.
	Password string
}

// New creates a pdfcpu-backed engine.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if e.Password != "" {
		conf.UserPW = e.Password
		conf.OwnerPW = e.Password
	}
	return conf
}

// Source is a parsed input file.
type Source struct {
	ctx *model.Context
}

// PageCount implements document.Source.
func (s *Source) PageCount() int { return s.ctx.PageCount }

// Parse reads and validates data.
func (e *Engine) Parse(ctx context.Context, data []byte) (document.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pctx, err := e.read(data)
	if err != nil {
		if errors.Is(err, pdfcpu.ErrWrongPassword) {
			return nil, fmt.Errorf("encrypted PDF: %w", err)
		}
		return nil, err
	}
	return &Source{ctx: pctx}, nil
}

func (e *Engine) read(data []byte) (*model.Context, error) {
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), e.config())
	if err != nil {
		return nil, err
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	return pctx, nil
}

// Render writes doc as a single PDF, one page per document page.
func (e *Engine) Render(ctx context.Context, doc *document.Document) ([]byte, error) {
	r := &renderer{engine: e, extracted: make(map[pageKey][]byte)}
	pages := doc.Pages()
	out := make([][]byte, 0, len(pages))
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := r.page(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		out = append(out, b)
	}
	return e.merge(out)
}

// merge concatenates single-page files in order.
func (e *Engine) merge(files [][]byte) ([]byte, error) {
	switch len(files) {
	case 0:
		return nil, errors.New("nothing to merge")
	case 1:
		return files[0], nil
	}
	readers := make([]io.ReadSeeker, len(files))
	for i, f := range files {
		readers[i] = bytes.NewReader(f)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, e.config()); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return out.Bytes(), nil
}

func (e *Engine) write(pctx *model.Context) ([]byte, error) {
	var out bytes.Buffer
	if err := api.WriteContext(pctx, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
