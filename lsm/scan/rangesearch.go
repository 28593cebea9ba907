package scan

import "sort"

// RangeInSorted returns (start, count) describing the maximal contiguous
// sub-slice of keys such that every element compares >= keyMin and
// <= keyMax. keys must already be sorted ascending. Equivalent to a
// lower-bound search for keyMin and an upper-bound search for keyMax;
// does not panic on an empty slice.
func RangeInSorted(keys []string, keyMin, keyMax string) (start, count int) {
	if len(keys) == 0 || keyMin > keyMax {
		return 0, 0
	}
	lo := sort.Search(len(keys), func(i int) bool { return keys[i] >= keyMin })
	if lo == len(keys) {
		return 0, 0
	}
	hi := sort.Search(len(keys), func(i int) bool { return keys[i] > keyMax })
	if hi <= lo {
		return 0, 0
	}
	return lo, hi - lo
}

// IndexBlockRange picks the contiguous [a, b] of index-block boundary-key
// entries that might hold a data block overlapping [keyMin, keyMax]. Each
// boundary is the largest key of its data block, so this is a distinct
// rule from RangeInSorted: the data block whose boundary is the first key
// >= keyMin might still hold keys < keyMin (its block also holds smaller
// keys up to the previous boundary), and the data block whose boundary is
// the first key >= keyMax is the last one that can possibly contain
// keyMax.
//
// Returns (start, count) = (0, 0) when every boundary key is < keyMin, or
// when keyMin is past the last boundary.
func IndexBlockRange(boundaries []string, keyMin, keyMax string) (start, count int) {
	if len(boundaries) == 0 || keyMin > keyMax {
		return 0, 0
	}
	a := sort.Search(len(boundaries), func(i int) bool { return boundaries[i] >= keyMin })
	if a == len(boundaries) {
		return 0, 0
	}
	b := sort.Search(len(boundaries), func(i int) bool { return boundaries[i] >= keyMax })
	if b == len(boundaries) {
		b = len(boundaries) - 1
	}
	return a, b - a + 1
}
