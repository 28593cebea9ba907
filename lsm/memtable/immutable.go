package memtable

import (
	"sort"
	"sync"

	"hunddb/model/keyspace"
	model "hunddb/model/record"
)

// ImmutableMemTable is a frozen, read-only snapshot of one or more
// memtables taken at flush time: the scan path's single "immutable" stream,
// standing in for hunddb's own queue of not-yet-flushed memtables
// (lsm.memtables[:len-1]) merged down into one sorted run.
//
// Once built its contents never change; FreezeActive is the only
// constructor, and Free is the only way to release it (after the flush
// worker has durably persisted the data it holds).
type ImmutableMemTable struct {
	mu         sync.RWMutex
	values     []*model.Record
	snapshotID keyspace.SnapshotID
	freed      bool
}

// FreezeActive merges the sorted contents of one or more memtables (newest
// first) into a single immutable, deduplicated-by-key run: for duplicate
// keys across memtables the newest memtable's record wins, matching
// hunddb's own precedence for its in-memory read path.
func FreezeActive(memtables []*MemTable, snapshotID keyspace.SnapshotID) *ImmutableMemTable {
	seen := make(map[string]bool)
	var merged []*model.Record
	for i := len(memtables) - 1; i >= 0; i-- {
		for _, rec := range memtables[i].SortIntoValues() {
			if seen[rec.Key] {
				continue
			}
			seen[rec.Key] = true
			merged = append(merged, rec)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Key < merged[j].Key })
	return &ImmutableMemTable{values: merged, snapshotID: snapshotID}
}

// Values returns the frozen record set in ascending key order. The slice
// must not be mutated by the caller.
func (im *ImmutableMemTable) Values() []*model.Record {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.values
}

// SnapshotMin reports the oldest snapshot for which this immutable view is
// still the authoritative source (i.e. the snapshot at which it was
// frozen).
func (im *ImmutableMemTable) SnapshotMin() keyspace.SnapshotID {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.snapshotID
}

// Populated reports whether this view still holds live data. A fresh LSM
// with nothing flushed yet has no immutable view at all (nil), so this
// only matters once one has been frozen.
func (im *ImmutableMemTable) Populated() bool {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return !im.freed && len(im.values) > 0
}

// Free releases the frozen record set once the flush worker has durably
// written it to an SSTable and the manifest has a table covering it; any
// scan still holding a reference to Values' slice from before Free keeps
// working, since the slice itself isn't mutated, only replaced.
func (im *ImmutableMemTable) Free() {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.values = nil
	im.freed = true
}
