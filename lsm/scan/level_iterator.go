package scan

import (
	"hunddb/lsm/grid"
	"hunddb/model/block"
	block_location "hunddb/model/block_location"
	"hunddb/model/keyspace"
	"hunddb/model/table"
)

// OnIndex filters an index block down to the data-block addresses that
// might overlap the scan's range, copying what it needs out of idx first
// (idx is only valid for the duration of the call).
type OnIndex func(info table.Info, idx *block.IndexBlock) (locs []block_location.BlockLocation, checksums []uint32)

// OnData receives one data block per call, and is called exactly once
// more with (nil, nil) at the end of the level.
type OnData func(db *block.DataBlock, err error)

// LevelIterator composes a LevelIndexIterator with a per-table data-block
// walk: for each overlapping table it calls onIndex once to get the
// address list, then issues one read_block per selected address in scan
// order, delivering each via onData. When a table's addresses are
// exhausted it moves on to the next table; when no table remains it
// calls onData(nil, nil) exactly once.
type LevelIterator struct {
	indexIter *LevelIndexIterator
	g         grid.Grid
	slot      grid.Slot
	direction keyspace.Direction

	data *dataIterator
}

// NewLevelIterator builds a LevelIterator over indexIter's table walk.
func NewLevelIterator(g grid.Grid, indexIter *LevelIndexIterator, direction keyspace.Direction) *LevelIterator {
	return &LevelIterator{
		indexIter: indexIter,
		g:         g,
		slot:      indexIter.Slot(),
		direction: direction,
	}
}

// Next delivers exactly one on_data invocation: either the next data
// block from the table currently being walked, or (after consulting the
// manifest for further tables as needed) the next table's first block, or
// the terminal (nil, nil) when the level is exhausted.
func (li *LevelIterator) Next(onIndex OnIndex, onData OnData) {
	if li.data != nil && !li.data.done() {
		loc, checksum := li.data.current()
		li.data.advance()
		li.g.ReadDataBlock(li.slot, loc, checksum, onData)
		return
	}
	li.advanceTable(onIndex, onData)
}

// advanceTable asks the index iterator for the next table, filters its
// index block via onIndex, and either starts reading that table's first
// selected data block or -- if the table's range selection was empty --
// recurses to try the table after it, all without yielding control back
// to the caller in between (the recursion is still fully asynchronous:
// each step only proceeds from inside the previous step's callback).
func (li *LevelIterator) advanceTable(onIndex OnIndex, onData OnData) {
	li.indexIter.Next(func(info *table.Info, idx *block.IndexBlock, err error) {
		if err != nil {
			onData(nil, err)
			return
		}
		if info == nil {
			li.data = nil
			onData(nil, nil)
			return
		}
		locs, checksums := onIndex(*info, idx)
		if len(locs) == 0 {
			li.advanceTable(onIndex, onData)
			return
		}
		li.data = newDataIterator(locs, checksums, li.direction)
		loc, checksum := li.data.current()
		li.data.advance()
		li.g.ReadDataBlock(li.slot, loc, checksum, onData)
	})
}
