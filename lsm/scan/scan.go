package scan

import (
	"hunddb/lsm/grid"
	"hunddb/lsm/manifest"
	"hunddb/model/keyspace"
	model "hunddb/model/record"
)

// MutableTable is the contract a scan needs from the tree's active
// memtable: a sorted snapshot of its current contents, stable for the
// scan's lifetime.
type MutableTable interface {
	SortIntoValues() []*model.Record
}

// ImmutableTable is the contract a scan needs from the frozen memtable
// view awaiting flush, if one exists.
type ImmutableTable interface {
	Values() []*model.Record
	SnapshotMin() keyspace.SnapshotID
	Populated() bool
}

type scanState int

const (
	scanIdle scanState = iota
	scanSeeking
	scanFetching
)

// epilogueSlot is used for the Fetch-level "no I/O needed" next-tick
// wakeup, which belongs to the scan as a whole rather than any one level.
var epilogueSlot = grid.Slot{Level: -1}

// Callback is how a Scan delivers fetch results: exactly one of (value
// set, done true, err set) per invocation.
type Callback func(value *model.Record, err error, done bool)

// Scan owns one LevelScan per LSM level plus the two memtable cursors,
// and drives the k-way merge across all of them. It exposes the public
// seek/fetch/reset contract; callers loop over Fetch until done is true.
type Scan struct {
	ctx *ScanContext
	g   grid.Grid
	mf  manifest.Manifest

	snapshot  keyspace.SnapshotID
	rng       keyspace.Range
	direction keyspace.Direction

	mutableCursor   Cursor[*model.Record]
	immutableCursor Cursor[*model.Record]
	levels          []*LevelScan

	merge *KWayMerge
	state scanState
	// pending counts outstanding per-level Advance calls plus one
	// "epilogue" unit, mirroring the spec's fetch/on_fetch accounting: it
	// only reaches zero once every level that needed loading has
	// completed its I/O.
	pending int
}

// NewScan builds an idle Scan sharing ctx's buffer pool and reading
// through g and mf.
func NewScan(ctx *ScanContext, g grid.Grid, mf manifest.Manifest) *Scan {
	return &Scan{ctx: ctx, g: g, mf: mf, state: scanIdle}
}

// Seek initializes the scan's memtable cursors and per-level iterators
// and transitions from Idle to Seeking. Requires key_min <= key_max and
// state == Idle, both programmer errors if violated.
func (s *Scan) Seek(snapshot keyspace.SnapshotID, rng keyspace.Range, direction keyspace.Direction, mutable MutableTable, immutable ImmutableTable) {
	if s.state != scanIdle {
		panic("scan: Seek called while not Idle")
	}
	if err := rng.Validate(); err != nil {
		panic("scan: " + err.Error())
	}

	s.snapshot = snapshot
	s.rng = rng
	s.direction = direction

	mutableValues := mutable.SortIntoValues()
	mStart, mCount := RangeInSorted(recordKeys(mutableValues), rng.KeyMin, rng.KeyMax)
	s.mutableCursor = NewCursor(mutableValues, mStart, mCount, direction)

	var immutableValues []*model.Record
	if immutable != nil && immutable.Populated() && immutable.SnapshotMin() <= snapshot {
		immutableValues = immutable.Values()
	}
	iStart, iCount := RangeInSorted(recordKeys(immutableValues), rng.KeyMin, rng.KeyMax)
	s.immutableCursor = NewCursor(immutableValues, iStart, iCount, direction)

	levelCount := s.mf.LevelCount()
	s.levels = make([]*LevelScan, levelCount)
	for level := 0; level < levelCount; level++ {
		buf := s.ctx.GetBuffer()
		s.levels[level] = NewLevelScan(level, s.g, s.mf, snapshot, rng, direction, buf)
	}

	s.merge = nil
	s.state = scanSeeking
}

// Fetch issues block reads for every level still in Load, then -- once
// all outstanding I/O for this round has completed -- runs one merge step
// and invokes callback exactly once, asynchronously. Must only be called
// while Seeking.
func (s *Scan) Fetch(callback Callback) {
	if s.state != scanSeeking {
		panic("scan: Fetch called while not Seeking")
	}
	s.state = scanFetching
	s.pending = 1 // epilogue: decremented once issuing is done

	for _, ls := range s.levels {
		if !ls.NeedsLoad() {
			continue
		}
		s.pending++
		ls.Advance(func() {
			s.pending--
			if s.pending == 0 {
				s.onFetch(callback)
			}
		})
	}

	s.pending--
	if s.pending == 0 {
		// No I/O was needed this round; still deliver asynchronously.
		s.g.OnNextTick(epilogueSlot, func() { s.onFetch(callback) })
	}
}

// onFetch runs after every level that needed loading has completed its
// I/O (or on the very next tick, if none did). It builds the merge on
// first use, pops one value, and either delivers it, re-enters Fetch on
// Again, or delivers end-of-scan.
func (s *Scan) onFetch(callback Callback) {
	s.state = scanSeeking

	for _, ls := range s.levels {
		if err := ls.Err(); err != nil {
			callback(nil, err, false)
			return
		}
	}

	if s.merge == nil {
		s.merge = NewKWayMerge(s.direction, &s.mutableCursor, &s.immutableCursor, s.levels)
	}

	result := s.merge.Next()
	switch {
	case result.Again:
		s.Fetch(callback)
	case result.End:
		callback(nil, nil, true)
	default:
		callback(result.Value, nil, false)
	}
}

// Reset discards the merge iterator, returns every level's ScanBuffer to
// the context it came from, and returns the scan to Idle. The caller must
// not be holding any delivered value that references this scan's buffers
// once Reset is called.
func (s *Scan) Reset() {
	for _, ls := range s.levels {
		s.ctx.Release(ls.Buffer())
	}
	s.merge = nil
	s.levels = nil
	s.state = scanIdle
}

func recordKeys(records []*model.Record) []string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}
