package booklet

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitEightPages(t *testing.T) {
	first, second := Split(8)
	if diff := cmp.Diff([]int{7, 0, 1, 6}, first); diff != "" {
		t.Errorf("first half mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{5, 2, 3, 4}, second); diff != "" {
		t.Errorf("second half mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitPartitions(t *testing.T) {
	for p := 1; p <= 96; p++ {
		first, second := Split(p)
		if len(first) != p/2 || len(second) != p-p/2 {
			t.Fatalf("p=%d: halves of %d and %d pages", p, len(first), len(second))
		}
		all := append(append([]int{}, first...), second...)
		sort.Ints(all)
		for i, v := range all {
			if v != i {
				t.Fatalf("p=%d: indices %v do not partition [0,%d)", p, all, p)
			}
		}
	}
}

func TestSplitSixteenPages(t *testing.T) {
	first, second := Split(16)
	if diff := cmp.Diff([]int{15, 0, 1, 14, 13, 2, 3, 12}, first); diff != "" {
		t.Errorf("first half mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{11, 4, 5, 10, 9, 6, 7, 8}, second); diff != "" {
		t.Errorf("second half mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitEmpty(t *testing.T) {
	first, second := Split(0)
	if first != nil || second != nil {
		t.Errorf("Split(0) = %v, %v", first, second)
	}
}
