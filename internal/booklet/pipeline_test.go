package booklet

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/local/bookletd/internal/document"
)

func TestModeAEightPages(t *testing.T) {
	eng := &fakeEngine{pages: 8}
	res, err := New(eng, Options{}).Run(context.Background(), ModeA, pdfInput)
	if err != nil {
		t.Fatal(err)
	}
	if res.OutputPages != 2 || eng.rendered.PageCount() != 2 {
		t.Fatalf("output pages = %d, want 2", res.OutputPages)
	}
	want := []Placement{
		{1, 1, 2}, {1, 2, 7}, {1, 3, 4}, {1, 4, 5},
		{2, 1, 8}, {2, 2, 1}, {2, 3, 6}, {2, 4, 3},
	}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if string(res.Output) != "%PDF-rendered" {
		t.Errorf("output = %q", res.Output)
	}
}

// The trailing half removed in mode A only ever holds blank sheets.
func TestModeATruncationDropsOnlyEmptySheets(t *testing.T) {
	for n := 1; n <= 40; n++ {
		src := loadFake(t, n)
		c := &Composer{Layout: QuadLayout(document.A4)}
		out := document.New()
		if _, err := c.Compose(context.Background(), out, itemsFor(src, Sequence(n)...)); err != nil {
			t.Fatal(err)
		}
		total := out.PageCount()
		for i, sheet := range out.Pages()[total/2:] {
			if len(sheet.Placements()) != 0 {
				t.Fatalf("n=%d: truncated sheet %d has content", n, total/2+i+1)
			}
		}

		eng := &fakeEngine{pages: n}
		res, err := New(eng, Options{}).Run(context.Background(), ModeA, pdfInput)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Trace) != n {
			t.Fatalf("n=%d: %d pages placed", n, len(res.Trace))
		}
		if want := (n + 3) / 4; res.OutputPages != want {
			t.Fatalf("n=%d: %d sheets, want %d", n, res.OutputPages, want)
		}
	}
}

func TestModeBFivePages(t *testing.T) {
	eng := &fakeEngine{pages: 5}
	res, err := New(eng, Options{Concurrency: 3}).Run(context.Background(), ModeB, pdfInput)
	if err != nil {
		t.Fatal(err)
	}
	if res.BlanksAdded != 3 || res.OutputPages != 2 {
		t.Fatalf("blanks %d, sheets %d; want 3, 2", res.BlanksAdded, res.OutputPages)
	}
	want := []Placement{
		{1, 1, 8}, {1, 2, 1}, {1, 3, 6}, {1, 4, 3},
		{2, 1, 2}, {2, 2, 7}, {2, 3, 4}, {2, 4, 5},
	}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}

	// page 8 is padding: its embedded copy carries the label
	sheet, _ := eng.rendered.Page(0)
	texts := sheet.Placements()[0].Embedded.Page().Texts()
	if diff := cmp.Diff([]string{"Blank Page — Page 8"}, texts); diff != "" {
		t.Errorf("padding label mismatch (-want +got):\n%s", diff)
	}
}

func TestModeBAlignedInputNoBlanks(t *testing.T) {
	res, err := New(&fakeEngine{pages: 16}, Options{}).Run(context.Background(), ModeB, pdfInput)
	if err != nil {
		t.Fatal(err)
	}
	if res.BlanksAdded != 0 || res.OutputPages != 4 || len(res.Trace) != 16 {
		t.Errorf("blanks %d, sheets %d, placements %d", res.BlanksAdded, res.OutputPages, len(res.Trace))
	}
}

func TestRecombineMismatchedHalves(t *testing.T) {
	a, b := loadFake(t, 4), loadFake(t, 3)
	_, err := recombine(a, b, []int{0, 1, 2, 3}, []int{4, 5, 6})
	var le *MismatchedLengthError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *MismatchedLengthError", err)
	}
	if le.First != 4 || le.Second != 3 {
		t.Errorf("got %+v", le)
	}
}

func TestRunModeEntryPoints(t *testing.T) {
	p := New(&fakeEngine{pages: 4}, Options{})
	for name, run := range map[string]func(context.Context, []byte) ([]byte, error){
		"a": p.RunModeA,
		"b": p.RunModeB,
	} {
		out, err := run(context.Background(), pdfInput)
		if err != nil || len(out) == 0 {
			t.Errorf("mode %s: out %q, err %v", name, out, err)
		}
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		eng    *fakeEngine
		mode   Mode
		input  []byte
		stage  string
		kind   string
		status int
	}{
		{"no input", &fakeEngine{pages: 1}, ModeA, nil, "validate", KindValidation, http.StatusBadRequest},
		{"not a pdf", &fakeEngine{pages: 1}, ModeB, []byte("hello"), "validate", KindValidation, http.StatusBadRequest},
		{"unknown mode", &fakeEngine{pages: 1}, Mode("c"), pdfInput, "validate", KindValidation, http.StatusBadRequest},
		{"no pages", &fakeEngine{}, ModeA, pdfInput, "validate", KindValidation, http.StatusBadRequest},
		{"parse", &fakeEngine{parseErr: errors.New("bad xref")}, ModeA, pdfInput, "load", KindParse, http.StatusUnprocessableEntity},
		{"render", &fakeEngine{pages: 2, renderErr: errors.New("disk full")}, ModeB, pdfInput, "save", KindSerialization, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.eng, Options{}).Run(context.Background(), tt.mode, tt.input)
			var pe *PipelineError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *PipelineError", err)
			}
			if pe.Stage != tt.stage {
				t.Errorf("stage = %q, want %q", pe.Stage, tt.stage)
			}
			if got := Kind(err); got != tt.kind {
				t.Errorf("Kind = %q, want %q", got, tt.kind)
			}
			if got := HTTPStatus(err); got != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&fakeEngine{pages: 8}, Options{}).Run(ctx, ModeA, pdfInput)
	if Kind(err) != KindCancelled {
		t.Errorf("Kind = %q (err %v), want cancelled", Kind(err), err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"a": ModeA, "A": ModeA, "single": ModeA, " b ": ModeB, "split": ModeB} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("booklet"); Kind(err) != KindValidation {
		t.Errorf("unknown mode: err = %v", err)
	}
}
