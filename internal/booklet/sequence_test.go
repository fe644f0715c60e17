package booklet

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSequenceEightPages(t *testing.T) {
	got := Sequence(8)
	want := Slots{2, 7, 4, 5, 8, 1, 6, 3, 0, 0, 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Sequence(8) mismatch (-want +got):\n%s", diff)
	}
}

func TestSequenceIsPermutation(t *testing.T) {
	for n := 1; n <= 64; n++ {
		seq := Sequence(n)
		rounds := (n + 3) / 4
		if len(seq) != rounds*8 {
			t.Fatalf("n=%d: %d slots, want %d", n, len(seq), rounds*8)
		}

		pages := seq.Pages()
		sort.Ints(pages)
		want := make([]int, n)
		for i := range want {
			want[i] = i + 1
		}
		if diff := cmp.Diff(want, pages); diff != "" {
			t.Fatalf("n=%d: pages are not a permutation of 1..n (-want +got):\n%s", n, diff)
		}

		for i, p := range seq[rounds*4:] {
			if p != Blank {
				t.Fatalf("n=%d: slot %d in the trailing half holds page %d", n, rounds*4+i, p)
			}
		}
	}
}

func TestSequencePartialSheet(t *testing.T) {
	got := Sequence(6)[:8]
	want := Slots{2, 5, 4, 3, 6, 1, Blank, Blank}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sequence(6) mismatch (-want +got):\n%s", diff)
	}
}

func TestSequenceEmpty(t *testing.T) {
	if s := Sequence(0); s != nil {
		t.Errorf("Sequence(0) = %v, want nil", s)
	}
	if s := Sequence(-3); s != nil {
		t.Errorf("Sequence(-3) = %v, want nil", s)
	}
}
