package scan

import (
	"container/heap"

	"hunddb/model/keyspace"
	model "hunddb/model/record"
)

// MergeResult is the outcome of one KWayMerge step.
type MergeResult struct {
	Value *model.Record
	End   bool
	Again bool
}

// KWayMerge is a tournament over L+2 streams: levels 0..L-1 (shallower is
// newer), then the mutable memtable, then the immutable memtable. It does
// not filter tombstones -- that is the caller's responsibility -- it only
// orders and deduplicates by precedence.
//
// Each step re-peeks every stream and runs the ready ones through a
// container/heap priority queue (grounded in the same pattern pebble's
// merging iterator uses for its file-level heap) to pick the winner and
// any same-key streams it shadows.
type KWayMerge struct {
	direction keyspace.Direction
	mutable   *Cursor[*model.Record]
	immutable *Cursor[*model.Record]
	levels    []*LevelScan
}

// NewKWayMerge builds a merge over levels (index 0 = shallowest/newest)
// plus the two memtable cursors.
func NewKWayMerge(direction keyspace.Direction, mutable, immutable *Cursor[*model.Record], levels []*LevelScan) *KWayMerge {
	return &KWayMerge{direction: direction, mutable: mutable, immutable: immutable, levels: levels}
}

type streamState int

const (
	streamEmpty streamState = iota
	streamDrained
	streamReady
)

// mutableStream and immutableStream are the two fixed stream indices
// beyond the levels; levels occupy [0, len(levels)).
func (m *KWayMerge) mutableStream() int   { return len(m.levels) }
func (m *KWayMerge) immutableStream() int { return len(m.levels) + 1 }

func (m *KWayMerge) peek(idx int) (key string, state streamState) {
	switch idx {
	case m.mutableStream():
		return peekCursor(m.mutable)
	case m.immutableStream():
		return peekCursor(m.immutable)
	default:
		ls := m.levels[idx]
		k, drained, empty := ls.Peek()
		switch {
		case empty:
			return "", streamEmpty
		case drained:
			return "", streamDrained
		default:
			return k, streamReady
		}
	}
}

func peekCursor(c *Cursor[*model.Record]) (string, streamState) {
	// Memtables never await I/O, so a cursor that is empty or has stepped
	// off the end is simply done, never Drained -- Drained is reserved for
	// level streams waiting on a block read.
	if c.Empty() || c.Exhausted() {
		return "", streamEmpty
	}
	return c.Get().Key, streamReady
}

func (m *KWayMerge) pop(idx int) *model.Record {
	switch idx {
	case m.mutableStream():
		return popCursor(m.mutable)
	case m.immutableStream():
		return popCursor(m.immutable)
	default:
		return m.levels[idx].Pop()
	}
}

func popCursor(c *Cursor[*model.Record]) *model.Record {
	rec := c.Get()
	c.Move()
	return rec
}

// rank orders streams by precedence: mutable beats everything, immutable
// beats every level, and among levels a lower index (shallower, newer)
// beats a higher one. Smaller rank wins.
func (m *KWayMerge) rank(idx int) int {
	switch idx {
	case m.mutableStream():
		return -2
	case m.immutableStream():
		return -1
	default:
		return idx
	}
}

// wins reports whether stream a should be chosen over stream b, given
// they currently peek at keyA/keyB: by key order in the scan direction,
// tie-broken by precedence.
func (m *KWayMerge) wins(keyA string, a int, keyB string, b int) bool {
	if keyA != keyB {
		if m.direction == keyspace.Ascending {
			return keyA < keyB
		}
		return keyA > keyB
	}
	return m.rank(a) < m.rank(b)
}

type mergeItem struct {
	idx int
	key string
}

type mergeHeap struct {
	items []mergeItem
	m     *KWayMerge
}

func (h *mergeHeap) Len() int { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool {
	return h.m.wins(h.items[i].key, h.items[i].idx, h.items[j].key, h.items[j].idx)
}
func (h *mergeHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x interface{}) { h.items = append(h.items, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// Next peeks every stream and returns the next merged value, Again if any
// stream is Drained (the caller must service I/O and retry), or End once
// every stream is Empty.
func (m *KWayMerge) Next() MergeResult {
	total := len(m.levels) + 2
	h := &mergeHeap{m: m}
	for i := 0; i < total; i++ {
		key, state := m.peek(i)
		switch state {
		case streamDrained:
			return MergeResult{Again: true}
		case streamReady:
			h.items = append(h.items, mergeItem{idx: i, key: key})
		}
	}
	if h.Len() == 0 {
		return MergeResult{End: true}
	}
	heap.Init(h)
	winner := heap.Pop(h).(mergeItem)
	rec := m.pop(winner.idx)

	// Drop same-key entries shadowed by the winner's precedence: they
	// were already confirmed Ready this step (no further I/O needed), so
	// popping them here cannot turn into a Drained surprise.
	for h.Len() > 0 && h.items[0].key == rec.Key {
		dup := heap.Pop(h).(mergeItem)
		m.pop(dup.idx)
	}
	return MergeResult{Value: rec}
}
