package booklet

// Blank marks a slot with no source page.
const Blank = 0

// Slots is an ordered list of 1-based source page numbers, with Blank for
// empty positions.
type Slots []int

// Pages returns the non-blank entries in order.
func (s Slots) Pages() []int {
	out := make([]int, 0, len(s))
	for _, p := range s {
		if p != Blank {
			out = append(out, p)
		}
	}
	return out
}

// deque hands out numbers from either end of a sorted list.
type deque struct {
	vals       []int
	head, tail int
}

func newDeque(vals []int) *deque { return &deque{vals: vals, tail: len(vals)} }

func (d *deque) shift() int {
	if d.head >= d.tail {
		return Blank
	}
	v := d.vals[d.head]
	d.head++
	return v
}

func (d *deque) pop() int {
	if d.head >= d.tail {
		return Blank
	}
	d.tail--
	return d.vals[d.tail]
}

// Sequence returns the single-pass booklet order for an n-page document.
//
// Pages are split into ascending even and odd lists. Each round emits a
// front {even↑, odd↓, even↑, odd↓} and a back {even↓, odd↑, even↓, odd↑},
// where ↑ takes the smallest unused number and ↓ the largest. There are
// ceil(n/4) rounds of 8 slots each, so every page lands in the first half
// of the stream and the second half is all Blank. Positions with no page
// left are Blank. Every page 1..n appears exactly once.
func Sequence(n int) Slots {
	if n <= 0 {
		return nil
	}
	var evens, odds []int
	for i := 1; i <= n; i++ {
		if i%2 == 0 {
			evens = append(evens, i)
		} else {
			odds = append(odds, i)
		}
	}
	even, odd := newDeque(evens), newDeque(odds)

	rounds := (n + 3) / 4
	seq := make(Slots, 0, rounds*8)
	for i := 0; i < rounds; i++ {
		seq = append(seq, even.shift(), odd.pop(), even.shift(), odd.pop())
		seq = append(seq, even.pop(), odd.shift(), even.pop(), odd.shift())
	}
	return seq
}
