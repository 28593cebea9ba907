package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeInSortedBasic(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	start, count := RangeInSorted(keys, "b", "d")
	assert.Equal(t, 1, start)
	assert.Equal(t, 3, count)
}

func TestRangeInSortedEmptyInput(t *testing.T) {
	start, count := RangeInSorted(nil, "a", "z")
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, count)
}

func TestRangeInSortedNoOverlap(t *testing.T) {
	keys := []string{"a", "b", "c"}
	_, count := RangeInSorted(keys, "x", "z")
	assert.Equal(t, 0, count)
}

func TestRangeInSortedInvertedRange(t *testing.T) {
	keys := []string{"a", "b", "c"}
	_, count := RangeInSorted(keys, "z", "a")
	assert.Equal(t, 0, count)
}

func TestRangeInSortedFullCoverage(t *testing.T) {
	keys := []string{"a", "b", "c"}
	start, count := RangeInSorted(keys, "a", "c")
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, count)
}

// TestIndexBlockRangeNarrowWindow pins spec scenario S6: boundary keys
// [10,20,30,40], range [22,28] selects exactly the block whose boundary is
// 30 (the only data block that could hold a key in that window).
func TestIndexBlockRangeNarrowWindow(t *testing.T) {
	boundaries := []string{"10", "20", "30", "40"}
	start, count := IndexBlockRange(boundaries, "22", "28")
	assert.Equal(t, 2, start)
	assert.Equal(t, 1, count)
}

func TestIndexBlockRangeSpansMultipleBlocks(t *testing.T) {
	boundaries := []string{"10", "20", "30", "40"}
	start, count := IndexBlockRange(boundaries, "15", "35")
	assert.Equal(t, 1, start)
	assert.Equal(t, 3, count)
}

func TestIndexBlockRangeEverythingBelowKeyMin(t *testing.T) {
	boundaries := []string{"10", "20", "30"}
	_, count := IndexBlockRange(boundaries, "50", "60")
	assert.Equal(t, 0, count)
}

func TestIndexBlockRangeKeyMaxBeyondLast(t *testing.T) {
	boundaries := []string{"10", "20", "30"}
	start, count := IndexBlockRange(boundaries, "25", "99")
	assert.Equal(t, 2, start)
	assert.Equal(t, 1, count)
}

func TestIndexBlockRangeEmptyBoundaries(t *testing.T) {
	_, count := IndexBlockRange(nil, "a", "z")
	assert.Equal(t, 0, count)
}
