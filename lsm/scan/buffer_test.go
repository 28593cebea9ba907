package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanContextHandsOutDistinctBuffers(t *testing.T) {
	ctx := NewScanContext(2)
	a := ctx.GetBuffer()
	b := ctx.GetBuffer()
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, ctx.Used())
}

func TestScanContextPanicsPastCapacity(t *testing.T) {
	ctx := NewScanContext(1)
	ctx.GetBuffer()
	assert.Panics(t, func() { ctx.GetBuffer() })
}

func TestScanContextResetReclaimsSlots(t *testing.T) {
	ctx := NewScanContext(1)
	ctx.GetBuffer()
	ctx.Reset()
	assert.Equal(t, 0, ctx.Used())
	assert.NotPanics(t, func() { ctx.GetBuffer() })
}

func TestScanContextReleaseReclaimsOneSlot(t *testing.T) {
	ctx := NewScanContext(2)
	a := ctx.GetBuffer()
	ctx.GetBuffer()
	assert.Equal(t, 2, ctx.Used())

	ctx.Release(a)
	assert.Equal(t, 1, ctx.Used())
	assert.Same(t, a, ctx.GetBuffer())
}

func TestScanContextSurvivesManySequentialScansPastCapacity(t *testing.T) {
	ctx := NewScanContext(1)
	for i := 0; i < 100; i++ {
		buf := ctx.GetBuffer()
		ctx.Release(buf)
	}
	assert.Equal(t, 0, ctx.Used())
}
