package pdfengine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/local/bookletd/internal/booklet"
	"github.com/local/bookletd/internal/document"
)

func parseCount(t *testing.T, e *Engine, data []byte) int {
	t.Helper()
	src, err := e.Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return src.PageCount()
}

func TestSampleParses(t *testing.T) {
	e := New()
	if got := parseCount(t, e, Sample(5, document.A4)); got != 5 {
		t.Errorf("page count = %d, want 5", got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := New().Parse(context.Background(), []byte("%PDF-1.4\nnot really")); err == nil {
		t.Error("expected parse error")
	}
}

func TestRenderBlankAndSourcePages(t *testing.T) {
	e := New()
	src, err := document.Load(context.Background(), e, Sample(3, document.A4))
	if err != nil {
		t.Fatal(err)
	}
	out := document.New()
	font, _ := out.EmbedFont(document.Helvetica)
	copies, err := src.CopyPages(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range copies {
		out.AddPage(p)
	}
	out.AddBlankPage(document.A4).DrawText("Blank Page — Page 3", 200, 400, font, 12)

	data, err := document.Save(context.Background(), e, out)
	if err != nil {
		t.Fatal(err)
	}
	if got := parseCount(t, e, data); got != 3 {
		t.Errorf("rendered %d pages, want 3", got)
	}
}

func TestRenderPlacedPages(t *testing.T) {
	e := New()
	src, err := document.Load(context.Background(), e, Sample(2, document.A4))
	if err != nil {
		t.Fatal(err)
	}
	out := document.New()
	sheet := out.AddBlankPage(document.A4)
	copies, _ := src.CopyPages(0, 1)
	for i, p := range copies {
		emb, err := out.EmbedPage(p)
		if err != nil {
			t.Fatal(err)
		}
		sheet.DrawPage(emb, document.Rect{X: float64(i) * 297.64, Y: 0, Width: 297.64, Height: 420.945})
	}

	data, err := document.Save(context.Background(), e, out)
	if err != nil {
		t.Fatal(err)
	}
	if got := parseCount(t, e, data); got != 1 {
		t.Errorf("rendered %d pages, want 1", got)
	}
}

func TestRenderRejectsForeignSource(t *testing.T) {
	doc, err := document.Load(context.Background(), stubEngine{}, []byte("%PDF"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = New().Render(context.Background(), doc)
	if err == nil || !strings.Contains(err.Error(), "not parsed by this engine") {
		t.Errorf("err = %v", err)
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	e := New()
	p := booklet.New(e, booklet.Options{Concurrency: 2})
	tests := []struct {
		mode   booklet.Mode
		pages  int
		sheets int
	}{
		{booklet.ModeA, 8, 2},
		{booklet.ModeA, 6, 2},
		{booklet.ModeB, 5, 2},
		{booklet.ModeB, 12, 4},
	}
	for _, tt := range tests {
		res, err := p.Run(context.Background(), tt.mode, Sample(tt.pages, document.A4))
		if err != nil {
			t.Fatalf("mode %s, %d pages: %v", tt.mode, tt.pages, err)
		}
		if got := parseCount(t, e, res.Output); got != tt.sheets {
			t.Errorf("mode %s, %d pages: %d sheets, want %d", tt.mode, tt.pages, got, tt.sheets)
		}
	}
}

func TestPipelineParseFailure(t *testing.T) {
	_, err := booklet.New(New(), booklet.Options{}).RunModeA(context.Background(), []byte("%PDF-1.7\ngarbage"))
	var pe *document.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("err = %v, want *document.ParseError", err)
	}
}

func TestLiteral(t *testing.T) {
	tests := map[string]string{
		"Page 1":              "(Page 1)",
		"a(b)c\\":             `(a\(b\)c\\)`,
		"Blank Page — Page 6": `(Blank Page \227 Page 6)`,
		"日本":                  "(??)",
	}
	for in, want := range tests {
		if got := literal(in); got != want {
			t.Errorf("literal(%q) = %s, want %s", in, got, want)
		}
	}
}

type stubSource struct{}

func (stubSource) PageCount() int { return 1 }

type stubEngine struct{}

func (stubEngine) Parse(ctx context.Context, data []byte) (document.Source, error) {
	return stubSource{}, nil
}

func (stubEngine) Render(ctx context.Context, doc *document.Document) ([]byte, error) {
	return nil, nil
}
