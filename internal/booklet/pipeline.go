// Package booklet imposes the pages of a PDF onto 4-up sheets that, printed
// double-sided and folded, read as a small booklet.
package booklet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/bookletd/internal/document"
	"github.com/local/bookletd/internal/filetype"
)

// Mode selects the imposition variant.
type Mode string

const (
	// ModeA reorders the original pages in a single pass and keeps the
	// first half of the composed sheets.
	ModeA Mode = "a"
	// ModeB pads to the fold factor, splits into two halves and
	// recombines two pages of each half per sheet.
	ModeB Mode = "b"
)

// ParseMode accepts "a"/"single" and "b"/"split", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "single":
		return ModeA, nil
	case "b", "split":
		return ModeB, nil
	}
	return "", &InputValidationError{Reason: fmt.Sprintf("unknown mode %q", s)}
}

// Options tunes a Pipeline. Zero values fall back to the defaults.
type Options struct {
	FoldFactor  int
	Concurrency int
	PageSize    document.Size
}

// Pipeline runs booklet impositions through a document engine. It holds no
// per-run state and is safe for concurrent use.
type Pipeline struct {
	engine document.Engine
	opts   Options
}

// New returns a pipeline that parses and renders with engine.
func New(engine document.Engine, opts Options) *Pipeline {
	if opts.FoldFactor <= 0 {
		opts.FoldFactor = DefaultFoldFactor
	}
	if opts.PageSize == (document.Size{}) {
		opts.PageSize = document.A4
	}
	return &Pipeline{engine: engine, opts: opts}
}

// Result is the outcome of a successful run.
type Result struct {
	Mode        Mode
	Output      []byte
	Trace       []Placement
	InputPages  int
	OutputPages int
	BlanksAdded int
	Duration    time.Duration
}

// RunModeA imposes input as a single-pass booklet.
func (p *Pipeline) RunModeA(ctx context.Context, input []byte) ([]byte, error) {
	res, err := p.Run(ctx, ModeA, input)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// RunModeB imposes input as a split-and-recombine booklet.
func (p *Pipeline) RunModeB(ctx context.Context, input []byte) ([]byte, error) {
	res, err := p.Run(ctx, ModeB, input)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// Run imposes input in the given mode. Any failure aborts the run and is
// returned as a *PipelineError; no partial output is returned.
func (p *Pipeline) Run(ctx context.Context, mode Mode, input []byte) (*Result, error) {
	start := time.Now()
	fail := func(stage string, err error) (*Result, error) {
		return nil, &PipelineError{Mode: mode, Stage: stage, Err: err}
	}

	if mode != ModeA && mode != ModeB {
		return fail("validate", &InputValidationError{Reason: fmt.Sprintf("unknown mode %q", mode)})
	}
	if len(input) == 0 {
		return fail("validate", &InputValidationError{Reason: "no file supplied"})
	}
	if !filetype.IsPDF(input) {
		return fail("validate", &InputValidationError{Reason: "not a PDF file"})
	}

	src, err := document.Load(ctx, p.engine, input)
	if err != nil {
		return fail("load", err)
	}
	res := &Result{Mode: mode, InputPages: src.PageCount()}
	if res.InputPages == 0 {
		return fail("validate", &InputValidationError{Reason: "document has no pages"})
	}

	var (
		out   *document.Document
		stage string
	)
	switch mode {
	case ModeA:
		out, stage, err = p.single(ctx, src, res)
	case ModeB:
		out, stage, err = p.split(ctx, src, res)
	}
	if err != nil {
		return fail(stage, err)
	}
	if err := ctx.Err(); err != nil {
		return fail("save", err)
	}

	res.OutputPages = out.PageCount()
	if res.Output, err = document.Save(ctx, p.engine, out); err != nil {
		return fail("save", err)
	}
	res.Duration = time.Since(start)

	log.Info().
		Str("mode", string(mode)).
		Int("input_pages", res.InputPages).
		Int("sheets", res.OutputPages).
		Int("blanks_added", res.BlanksAdded).
		Dur("duration", res.Duration).
		Msg("booklet composed")
	return res, nil
}

func (p *Pipeline) composer() *Composer {
	return &Composer{Layout: QuadLayout(p.opts.PageSize), Concurrency: p.opts.Concurrency}
}

// single composes src in Sequence order, then drops sheets from
// floor(total/2) onwards.
func (p *Pipeline) single(ctx context.Context, src *document.Document, res *Result) (*document.Document, string, error) {
	seq := Sequence(src.PageCount())
	items := make([]Item, len(seq))
	for i, n := range seq {
		if n != Blank {
			items[i] = Item{Src: src, Index: n - 1, Number: n}
		}
	}

	out := document.New()
	trace, err := p.composer().Compose(ctx, out, items)
	if err != nil {
		return nil, "compose", err
	}

	total := out.PageCount()
	keep := total / 2
	for i := total - 1; i >= keep; i-- {
		if err := out.RemovePage(i); err != nil {
			return nil, "truncate", err
		}
	}
	for _, pl := range trace {
		if pl.Sheet <= keep {
			res.Trace = append(res.Trace, pl)
		}
	}
	return out, "", nil
}

// split pads src to the fold factor, splits it into two halves and lays
// out two pages of each half per sheet.
func (p *Pipeline) split(ctx context.Context, src *document.Document, res *Result) (*document.Document, string, error) {
	norm, added, err := Normalize(src, p.opts.FoldFactor, p.opts.PageSize)
	if err != nil {
		return nil, "normalize", err
	}
	res.BlanksAdded = added
	if err := ctx.Err(); err != nil {
		return nil, "normalize", err
	}

	firstIdx, secondIdx := Split(norm.PageCount())
	first, err := halfDocument(norm, firstIdx)
	if err != nil {
		return nil, "split", err
	}
	second, err := halfDocument(norm, secondIdx)
	if err != nil {
		return nil, "split", err
	}

	items, err := recombine(first, second, firstIdx, secondIdx)
	if err != nil {
		return nil, "recombine", err
	}

	out := document.New()
	if res.Trace, err = p.composer().Compose(ctx, out, items); err != nil {
		return nil, "compose", err
	}
	return out, "", nil
}

func halfDocument(src *document.Document, indices []int) (*document.Document, error) {
	pages, err := src.CopyPages(indices...)
	if err != nil {
		return nil, err
	}
	half := document.New()
	for _, pg := range pages {
		half.AddPage(pg)
	}
	return half, nil
}

// recombine pairs the halves positionally: pages i and i+1 of the first
// half take the top slots of sheet i/2+1, the same pages of the second half
// the bottom slots. numbers map half positions back to 0-based page indices
// for the trace.
func recombine(first, second *document.Document, firstNums, secondNums []int) ([]Item, error) {
	n := first.PageCount()
	if m := second.PageCount(); n != m {
		return nil, &MismatchedLengthError{First: n, Second: m}
	}
	items := make([]Item, 0, 2*n)
	pick := func(doc *document.Document, nums []int, i int) Item {
		if i >= n {
			return Item{}
		}
		return Item{Src: doc, Index: i, Number: nums[i] + 1}
	}
	for i := 0; i < n; i += 2 {
		items = append(items,
			pick(first, firstNums, i), pick(first, firstNums, i+1),
			pick(second, secondNums, i), pick(second, secondNums, i+1))
	}
	return items, nil
}
