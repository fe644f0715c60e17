package booklet

// Split divides the 0-based page indices [0, p) into two halves for the
// split-and-recombine booklet.
//
// Two cursors start at both ends. Pages are taken in groups of four in the
// pattern right, left, left, right; the first half stops after p/2 pages,
// the second half takes the rest with the same pattern until the cursors
// cross. Each step is guarded on its own, so a trailing partial group is
// fine.
func Split(p int) (first, second []int) {
	if p <= 0 {
		return nil, nil
	}
	left, right := 0, p-1
	half := p / 2

	takeRight := func(dst []int) []int {
		dst = append(dst, right)
		right--
		return dst
	}
	takeLeft := func(dst []int) []int {
		dst = append(dst, left)
		left++
		return dst
	}

	first = make([]int, 0, half)
	for len(first) < half {
		if len(first) < half {
			first = takeRight(first)
		}
		if len(first) < half {
			first = takeLeft(first)
		}
		if len(first) < half {
			first = takeLeft(first)
		}
		if len(first) < half {
			first = takeRight(first)
		}
	}

	second = make([]int, 0, p-half)
	for left <= right {
		if left <= right {
			second = takeRight(second)
		}
		if left <= right {
			second = takeLeft(second)
		}
		if left <= right {
			second = takeLeft(second)
		}
		if left <= right {
			second = takeRight(second)
		}
	}
	return first, second
}
