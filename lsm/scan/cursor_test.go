package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hunddb/model/keyspace"
)

func TestCursorEmptyWindow(t *testing.T) {
	c := NewCursor([]int{1, 2, 3}, 0, 0, keyspace.Ascending)
	assert.True(t, c.Empty())
	assert.True(t, c.Exhausted())
}

func TestCursorAscendingWalk(t *testing.T) {
	items := []int{10, 20, 30, 40, 50}
	c := NewCursor(items, 1, 3, keyspace.Ascending)
	require.False(t, c.Exhausted())
	assert.Equal(t, 20, c.Get())

	assert.True(t, c.Move())
	assert.Equal(t, 30, c.Get())

	assert.True(t, c.Move())
	assert.Equal(t, 40, c.Get())

	assert.False(t, c.Move())
	assert.True(t, c.Exhausted())
}

func TestCursorDescendingWalk(t *testing.T) {
	items := []int{10, 20, 30, 40, 50}
	c := NewCursor(items, 1, 3, keyspace.Descending)
	assert.Equal(t, 40, c.Get())

	assert.True(t, c.Move())
	assert.Equal(t, 30, c.Get())

	assert.True(t, c.Move())
	assert.Equal(t, 20, c.Get())

	assert.False(t, c.Move())
	assert.True(t, c.Exhausted())
}

func TestCursorGetOnExhaustedPanics(t *testing.T) {
	c := NewCursor([]int{}, 0, 0, keyspace.Ascending)
	assert.Panics(t, func() { c.Get() })
}

func TestCursorMoveOnExhaustedPanics(t *testing.T) {
	c := NewCursor([]int{1}, 0, 1, keyspace.Ascending)
	c.Move()
	assert.Panics(t, func() { c.Move() })
}
