// Package table describes the manifest's unit of bookkeeping: one SSTable's
// address, checksum, key range, and snapshot visibility window.
package table

import (
	block_location "hunddb/model/block_location"
	"hunddb/model/keyspace"
)

// Info is a snapshot-filtered manifest entry for one on-disk SSTable.
// Between two compactions an Info is immutable except for VisibleUntil,
// which a compaction sets once when the table is superseded.
type Info struct {
	// ID uniquely identifies the SSTable (its on-disk index in hunddb's
	// existing sstable_%d.db naming).
	ID uint64

	// Level is the LSM level this table belongs to; tables on one level
	// are disjoint in key range.
	Level int

	// Location is where the table's index block lives.
	Location block_location.BlockLocation

	// Checksum covers the index block's on-disk representation.
	Checksum uint32

	KeyMin string
	KeyMax string

	// VisibleFrom is the snapshot at which this table became part of the
	// tree (its flush or compaction generation).
	VisibleFrom keyspace.SnapshotID

	// VisibleUntil is the snapshot at which a later compaction superseded
	// this table. Zero means still live.
	VisibleUntil keyspace.SnapshotID
}

// Overlaps reports whether the table's key range intersects r.
func (t Info) Overlaps(r keyspace.Range) bool {
	return r.Overlaps(t.KeyMin, t.KeyMax)
}

// VisibleAt reports whether the table is part of the tree as of snapshot.
func (t Info) VisibleAt(snapshot keyspace.SnapshotID) bool {
	if snapshot == keyspace.SnapshotLatest {
		return t.VisibleUntil == 0
	}
	if snapshot < t.VisibleFrom {
		return false
	}
	return t.VisibleUntil == 0 || snapshot < t.VisibleUntil
}
