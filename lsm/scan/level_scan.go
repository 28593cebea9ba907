package scan

import (
	"hunddb/lsm/grid"
	"hunddb/lsm/manifest"
	"hunddb/model/block"
	block_location "hunddb/model/block_location"
	"hunddb/model/keyspace"
	model "hunddb/model/record"
	"hunddb/model/table"
)

// levelState is LevelScan's per-level state. Load and the spec's
// intermediate Next(cursor) are collapsed here: this implementation's
// LevelIterator.Next always drives straight from "need a block" through to
// either a delivered data block or end-of-level inside one Advance call,
// so Next never needs to be observed between merge steps -- only Load,
// Current, and Eof are ever visible to Peek.
type levelState int

const (
	levelLoad levelState = iota
	levelCurrent
	levelEof
)

// LevelScan is one LSM level's contribution to a scan: its LevelIterator,
// its ScanBuffer slot, and a cursor over whatever data block is currently
// loaded.
type LevelScan struct {
	level     int
	buf       *ScanBuffer
	iter      *LevelIterator
	rng       keyspace.Range
	direction keyspace.Direction

	state  levelState
	cursor Cursor[*model.Record]
	err    error
}

// NewLevelScan builds a LevelScan for level, starting its LevelIterator
// against mf/g for the given snapshot, range, and direction. buf must
// come from the owning Scan's ScanContext and outlive the scan.
func NewLevelScan(level int, g grid.Grid, mf manifest.Manifest, snapshot keyspace.SnapshotID, rng keyspace.Range, direction keyspace.Direction, buf *ScanBuffer) *LevelScan {
	indexIter := NewLevelIndexIterator(mf, g, level, snapshot, rng, direction)
	return &LevelScan{
		level:     level,
		buf:       buf,
		iter:      NewLevelIterator(g, indexIter, direction),
		rng:       rng,
		direction: direction,
		state:     levelLoad,
	}
}

// NeedsLoad reports whether this level is in Load and must be serviced by
// a fetch before the merge can peek it again.
func (ls *LevelScan) NeedsLoad() bool {
	return ls.state == levelLoad
}

// Buffer returns this level's ScanBuffer slot, so the owning Scan can
// return it to its ScanContext on Reset.
func (ls *LevelScan) Buffer() *ScanBuffer {
	return ls.buf
}

// Err returns any storage error observed while advancing this level.
func (ls *LevelScan) Err() error {
	return ls.err
}

// Advance issues whatever I/O is needed to bring this level out of Load,
// invoking done once the level has reached Current or Eof (or recorded an
// error). Must only be called while NeedsLoad is true.
func (ls *LevelScan) Advance(done func()) {
	if ls.state != levelLoad {
		panic("scan: LevelScan.Advance called outside Load")
	}
	ls.iter.Next(
		func(info table.Info, idx *block.IndexBlock) ([]block_location.BlockLocation, []uint32) {
			ls.buf.IndexBlock = *idx
			start, count := IndexBlockRange(ls.buf.IndexBlock.Keys(), ls.rng.KeyMin, ls.rng.KeyMax)
			if count == 0 {
				return nil, nil
			}
			entries := ls.buf.IndexBlock.Entries[start : start+count]
			locs := make([]block_location.BlockLocation, len(entries))
			checksums := make([]uint32, len(entries))
			for i, e := range entries {
				locs[i] = e.Location
				checksums[i] = e.Checksum
			}
			return locs, checksums
		},
		func(db *block.DataBlock, err error) {
			if err != nil {
				ls.err = err
				ls.state = levelEof
				done()
				return
			}
			if db == nil {
				ls.state = levelEof
				done()
				return
			}
			ls.buf.DataBlock = *db
			start, count := RangeInSorted(ls.buf.DataBlock.Keys(), ls.rng.KeyMin, ls.rng.KeyMax)
			ls.cursor = NewCursor(ls.buf.DataBlock.Values, start, count, ls.direction)
			if ls.cursor.Empty() {
				// Nothing in range in this data block; come back to Load
				// rather than surface a spurious empty Current.
				ls.state = levelLoad
				done()
				return
			}
			ls.state = levelCurrent
			done()
		},
	)
}

// Peek returns the current record's key when state is Current, or
// reports Drained (Load) / Empty (Eof). The merge peeks every level on
// each step; a level still in Load makes it return Again.
func (ls *LevelScan) Peek() (key string, drained, empty bool) {
	switch ls.state {
	case levelEof:
		return "", false, true
	case levelLoad:
		return "", true, false
	default:
		if ls.cursor.Exhausted() {
			panic("scan: LevelScan in Current with an exhausted cursor")
		}
		return ls.cursor.Get().Key, false, false
	}
}

// Pop returns the current record and advances the level's cursor. When
// the data block is exhausted it transitions back to Load so the next
// fetch knows to re-invoke the iterator.
func (ls *LevelScan) Pop() *model.Record {
	rec := ls.cursor.Get()
	if !ls.cursor.Move() {
		ls.state = levelLoad
	}
	return rec
}
