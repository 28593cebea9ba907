package scan

import (
	"hunddb/lsm/grid"
	"hunddb/lsm/manifest"
	"hunddb/model/block"
	"hunddb/model/keyspace"
	"hunddb/model/table"
)

// LevelIndexIterator yields the sequence of (TableInfo, IndexBlock) pairs
// for one level that overlap a scan's range, consulting the manifest for
// the next table and reading its index block through the grid.
//
// It tracks only the last table it yielded (exclusive); the manifest
// itself enforces that tables on one level are key-disjoint, so that
// single exclusive bound is enough to resume the walk.
type LevelIndexIterator struct {
	mf        manifest.Manifest
	g         grid.Grid
	slot      grid.Slot
	level     int
	snapshot  keyspace.SnapshotID
	rng       keyspace.Range
	direction keyspace.Direction

	exclusive *table.Info
}

// NewLevelIndexIterator starts a fresh walk of level, against mf and g,
// for the given snapshot/range/direction.
func NewLevelIndexIterator(mf manifest.Manifest, g grid.Grid, level int, snapshot keyspace.SnapshotID, rng keyspace.Range, direction keyspace.Direction) *LevelIndexIterator {
	return &LevelIndexIterator{
		mf:        mf,
		g:         g,
		slot:      grid.Slot{Level: level},
		level:     level,
		snapshot:  snapshot,
		rng:       rng,
		direction: direction,
	}
}

// Slot returns the grid.Slot this iterator reads under, so a LevelIterator
// composing it can issue data-block reads under the same slot.
func (it *LevelIndexIterator) Slot() grid.Slot {
	return it.slot
}

// Next asks the manifest for the next overlapping, visible table strictly
// beyond the last one yielded, reads its index block, and invokes done.
// When no further table exists, done is invoked asynchronously (via
// OnNextTick) with (nil, nil, nil) -- the terminal case -- so the callback
// is never delivered synchronously from within Next's own frame.
func (it *LevelIndexIterator) Next(done func(info *table.Info, idx *block.IndexBlock, err error)) {
	info, ok := it.mf.NextTable(it.level, it.snapshot, it.rng, it.exclusive, it.direction)
	if !ok {
		it.g.OnNextTick(it.slot, func() { done(nil, nil, nil) })
		return
	}
	it.exclusive = &info
	it.g.ReadIndexBlock(it.slot, info.Location, info.Checksum, func(idx *block.IndexBlock, err error) {
		if err != nil {
			done(nil, nil, err)
			return
		}
		done(&info, idx, nil)
	})
}
