// Package block holds the shapes that cross the Grid boundary: a table's
// index block (one per table, listing its data-block boundaries) and a
// data block (one sorted run of records).
package block

import (
	block_location "hunddb/model/block_location"
	model "hunddb/model/record"
)

// IndexEntry is one data-block boundary: the largest key stored in that
// data block, plus where to read it and its checksum.
type IndexEntry struct {
	KeyMax   string
	Location block_location.BlockLocation
	Checksum uint32
}

// IndexBlock is a table's full index: a sorted sequence of per-data-block
// boundaries. The scan engine copies it into a ScanBuffer slot before
// examining it, so callbacks may hold a reference to it for as long as the
// table is being walked.
type IndexBlock struct {
	Entries []IndexEntry
}

// Keys returns the boundary keys, in the same order as Entries.
func (b *IndexBlock) Keys() []string {
	if b == nil {
		return nil
	}
	keys := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		keys[i] = e.KeyMax
	}
	return keys
}

// DataBlock is a sorted run of values read from one data block of one
// table.
type DataBlock struct {
	Values []*model.Record
}

// Keys returns the record keys, in the same order as Values.
func (b *DataBlock) Keys() []string {
	if b == nil {
		return nil
	}
	keys := make([]string, len(b.Values))
	for i, v := range b.Values {
		keys[i] = v.Key
	}
	return keys
}
