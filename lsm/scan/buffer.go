package scan

import (
	"fmt"
	"sync"

	"hunddb/model/block"
)

// ScanBuffer is one level's buffer pair: the index block and data block
// currently owned by that level's LevelScan. Grid implementations copy
// into these slots before returning control, so a callback may hold a
// reference into a ScanBuffer for as long as the table/data-block it
// describes is being walked, without retaining a storage-owned pointer.
type ScanBuffer struct {
	IndexBlock block.IndexBlock
	DataBlock  block.DataBlock
}

// ScanContext is a fixed-capacity pool of ScanBuffer slots shared by every
// scan against one tree. GetBuffer hands out a free slot and asserts
// capacity; Release returns a slot once its owning Scan is done with it, so
// a long-lived tree can serve many sequential (or concurrent, up to
// scan_max) scans without ever exhausting the pool.
type ScanContext struct {
	mu      sync.Mutex
	buffers []ScanBuffer
	free    []*ScanBuffer
}

// NewScanContext builds a context with room for scanMax concurrently
// in-flight ScanBuffer slots.
func NewScanContext(scanMax int) *ScanContext {
	buffers := make([]ScanBuffer, scanMax)
	free := make([]*ScanBuffer, scanMax)
	for i := range buffers {
		free[i] = &buffers[i]
	}
	return &ScanContext{buffers: buffers, free: free}
}

// GetBuffer hands out a free ScanBuffer slot. Panics if the context is
// already at capacity -- a programmer error per the spec's error model
// (scans must be Reset before scan_max concurrent scans are exceeded), not
// a recoverable condition.
func (c *ScanContext) GetBuffer() *ScanBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.free) == 0 {
		panic(fmt.Sprintf("scan: ScanContext exhausted (scan_max=%d)", len(c.buffers)))
	}
	n := len(c.free) - 1
	buf := c.free[n]
	c.free = c.free[:n]
	return buf
}

// Release returns buf to the free pool for reuse by a later scan. buf's
// contents are left in place (cheap) and overwritten on next use.
func (c *ScanContext) Release(buf *ScanBuffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.free = append(c.free, buf)
}

// Reset reclaims every outstanding slot at once, regardless of which scan
// it was on loan to. Intended for tree-wide teardown/recovery, where no
// individual Scan is left around to Release its own buffers.
func (c *ScanContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.free = c.free[:0]
	for i := range c.buffers {
		c.free = append(c.free, &c.buffers[i])
	}
}

// Used reports how many buffers are currently on loan.
func (c *ScanContext) Used() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers) - len(c.free)
}
