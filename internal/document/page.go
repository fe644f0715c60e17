package document

// Op is a drawing operation recorded on a page.
type Op interface {
	op()
}

// TextOp draws a single line of text with its baseline origin at X, Y.
type TextOp struct {
	Text string
	X    float64
	Y    float64
	Font *Font
	Size float64
}

// PlaceOp draws an embedded page scaled into Rect.
type PlaceOp struct {
	Embedded *EmbeddedPage
	Rect     Rect
}

func (TextOp) op()  {}
func (PlaceOp) op() {}

// Page is either a page of a loaded source file or a blank page of a fixed
// size, plus the operations drawn on top of it.
type Page struct {
	src   Source
	index int
	size  Size
	ops   []Op
}

// Origin reports the source file and 0-based index the page was loaded
// from. ok is false for blank pages.
func (p *Page) Origin() (src Source, index int, ok bool) {
	if p.src == nil {
		return nil, 0, false
	}
	return p.src, p.index, true
}

// Size returns the size of a blank page; it is zero for source pages, whose
// geometry only the engine knows.
func (p *Page) Size() Size { return p.size }

// Ops returns the recorded operations in drawing order.
func (p *Page) Ops() []Op {
	out := make([]Op, len(p.ops))
	copy(out, p.ops)
	return out
}

// DrawText records a text operation.
func (p *Page) DrawText(text string, x, y float64, font *Font, size float64) {
	p.ops = append(p.ops, TextOp{Text: text, X: x, Y: y, Font: font, Size: size})
}

// DrawPage records the placement of an embedded page.
func (p *Page) DrawPage(e *EmbeddedPage, r Rect) {
	p.ops = append(p.ops, PlaceOp{Embedded: e, Rect: r})
}

// Placements returns the PlaceOps drawn on the page.
func (p *Page) Placements() []PlaceOp {
	var out []PlaceOp
	for _, o := range p.ops {
		if po, ok := o.(PlaceOp); ok {
			out = append(out, po)
		}
	}
	return out
}

// Texts returns the text drawn on the page.
func (p *Page) Texts() []string {
	var out []string
	for _, o := range p.ops {
		if to, ok := o.(TextOp); ok {
			out = append(out, to.Text)
		}
	}
	return out
}

func (p *Page) clone() *Page {
	c := *p
	c.ops = make([]Op, len(p.ops))
	copy(c.ops, p.ops)
	return &c
}
