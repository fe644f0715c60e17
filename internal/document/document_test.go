package document

import (
	"context"
	"errors"
	"testing"
)

type fakeSource struct{ pages int }

func (s fakeSource) PageCount() int { return s.pages }

type fakeEngine struct {
	pages     int
	parseErr  error
	renderErr error
}

func (e fakeEngine) Parse(ctx context.Context, data []byte) (Source, error) {
	if e.parseErr != nil {
		return nil, e.parseErr
	}
	return fakeSource{pages: e.pages}, nil
}

func (e fakeEngine) Render(ctx context.Context, doc *Document) ([]byte, error) {
	if e.renderErr != nil {
		return nil, e.renderErr
	}
	return []byte("%PDF"), nil
}

func TestLoadKeepsSourceOrder(t *testing.T) {
	doc, err := Load(context.Background(), fakeEngine{pages: 3}, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("page count = %d, want 3", doc.PageCount())
	}
	for i, p := range doc.Pages() {
		_, idx, ok := p.Origin()
		if !ok || idx != i {
			t.Errorf("page %d origin = (%d, %v)", i, idx, ok)
		}
	}
}

func TestLoadWrapsParseFailures(t *testing.T) {
	_, err := Load(context.Background(), fakeEngine{parseErr: errors.New("bad xref")}, []byte("x"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}

	_, err = Load(context.Background(), fakeEngine{pages: 1}, nil)
	if !errors.As(err, &pe) {
		t.Fatalf("empty input: err = %v, want *ParseError", err)
	}
}

func TestSaveWrapsRenderFailures(t *testing.T) {
	doc := New()
	doc.AddBlankPage(A4)
	_, err := Save(context.Background(), fakeEngine{renderErr: errors.New("disk full")}, doc)
	var se *SerializationError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SerializationError", err)
	}

	if _, err := Save(context.Background(), fakeEngine{}, New()); !errors.As(err, &se) {
		t.Fatalf("empty document: err = %v, want *SerializationError", err)
	}
}

func TestCopyPagesAreIndependent(t *testing.T) {
	doc := New()
	font, err := doc.EmbedFont(Helvetica)
	if err != nil {
		t.Fatal(err)
	}
	orig := doc.AddBlankPage(A4)
	orig.DrawText("one", 10, 10, font, 12)

	copies, err := doc.CopyPages(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	copies[0].DrawText("two", 10, 30, font, 12)

	if got := len(orig.Texts()); got != 1 {
		t.Errorf("original has %d texts, want 1", got)
	}
	if got := len(copies[1].Texts()); got != 1 {
		t.Errorf("second copy has %d texts, want 1", got)
	}
	if got := len(copies[0].Texts()); got != 2 {
		t.Errorf("first copy has %d texts, want 2", got)
	}
}

func TestCopyPagesOutOfRange(t *testing.T) {
	doc := New()
	doc.AddBlankPage(A4)
	_, err := doc.CopyPages(0, 1)
	var ie *PageIndexError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *PageIndexError", err)
	}
	if ie.Index != 1 || ie.Count != 1 {
		t.Errorf("got %+v", ie)
	}
	if _, err := doc.CopyPages(-1); !errors.As(err, &ie) {
		t.Errorf("negative index: err = %v", err)
	}
}

func TestRemovePage(t *testing.T) {
	doc := New()
	a := doc.AddBlankPage(A4)
	doc.AddBlankPage(A4)
	c := doc.AddBlankPage(Size{Width: 100, Height: 100})

	if err := doc.RemovePage(1); err != nil {
		t.Fatal(err)
	}
	pages := doc.Pages()
	if len(pages) != 2 || pages[0] != a || pages[1] != c {
		t.Fatalf("unexpected pages after remove: %v", pages)
	}
	var ie *PageIndexError
	if err := doc.RemovePage(2); !errors.As(err, &ie) {
		t.Errorf("err = %v, want *PageIndexError", err)
	}
}

func TestEmbedFontReusesHandle(t *testing.T) {
	doc := New()
	a, _ := doc.EmbedFont(Helvetica)
	b, _ := doc.EmbedFont(Helvetica)
	c, _ := doc.EmbedFont(Courier)
	if a != b {
		t.Error("same font embedded twice returned different handles")
	}
	if a.Key == c.Key {
		t.Errorf("distinct fonts share key %q", a.Key)
	}
	if _, err := doc.EmbedFont("Comic Sans"); err == nil {
		t.Error("expected error for unknown font")
	}
}

func TestEmbedPageSnapshots(t *testing.T) {
	doc := New()
	font, _ := doc.EmbedFont(Helvetica)
	p := New().AddBlankPage(A4)
	e, err := doc.EmbedPage(p)
	if err != nil {
		t.Fatal(err)
	}
	p.DrawText("late", 0, 0, font, 10)
	if len(e.Page().Texts()) != 0 {
		t.Error("embedding saw a change made after embedding")
	}

	sheet := doc.AddBlankPage(A4)
	sheet.DrawPage(e, Rect{X: 1, Y: 2, Width: 3, Height: 4})
	pl := sheet.Placements()
	if len(pl) != 1 || pl[0].Rect != (Rect{X: 1, Y: 2, Width: 3, Height: 4}) {
		t.Errorf("placements = %+v", pl)
	}
}
