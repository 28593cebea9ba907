package lsm

import (
	"hunddb/lsm/grid"
	"hunddb/lsm/manifest"
	"hunddb/lsm/memtable"
	"hunddb/lsm/scan"
	"hunddb/model/keyspace"
	model "hunddb/model/record"
	"time"
)

// multiMemtableView adapts every memtable currently held in memory (the
// active one plus any not yet picked up by a flush) into the single sorted,
// deduplicated view scan.Scan.Seek wants as its "mutable" stream. Later
// entries in memtables shadow earlier ones at the same key, matching the
// precedence checkMemtables already uses for point lookups.
type multiMemtableView struct {
	memtables []*memtable.MemTable
}

func (v multiMemtableView) SortIntoValues() []*model.Record {
	seen := make(map[string]bool)
	var merged []*model.Record
	for i := len(v.memtables) - 1; i >= 0; i-- {
		for _, rec := range v.memtables[i].SortIntoValues() {
			if seen[rec.Key] {
				continue
			}
			seen[rec.Key] = true
			merged = append(merged, rec)
		}
	}
	sortRecordsByKey(merged)
	return merged
}

func sortRecordsByKey(records []*model.Record) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].Key < records[j-1].Key; j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}

// scanMemtableViewLocked snapshots the mutable and immutable memtable views
// a Scan needs, under lsm.mu. Caller must hold at least a read lock.
func (lsm *LSM) scanMemtableViewLocked() (scan.MutableTable, scan.ImmutableTable) {
	mutable := multiMemtableView{memtables: append([]*memtable.MemTable{}, lsm.memtables...)}
	if lsm.immutable == nil {
		return mutable, nil
	}
	return mutable, lsm.immutable
}

// Scan opens a range scan over [keyMin, keyMax] as of the tree's current
// snapshot, walking keys in dir order. The returned Scan is Seeking;
// callers drive it with repeated Fetch calls until done is true, then
// should call Reset once they are finished reading from it.
func (lsm *LSM) Scan(keyMin, keyMax string, dir keyspace.Direction) (*scan.Scan, error) {
	lsm.mu.RLock()
	defer lsm.mu.RUnlock()

	rng := keyspace.Range{KeyMin: keyMin, KeyMax: keyMax}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	mutable, immutable := lsm.scanMemtableViewLocked()
	s := scan.NewScan(lsm.scanCtx, lsm.grid, manifest.Manifest(lsm.manifest))
	s.Seek(keyspace.SnapshotLatest, rng, dir, mutable, immutable)
	return s, nil
}

// ScanValues drains a full range scan into a slice, tombstones included.
// Intended for tests and small ranges; large scans should drive Scan's
// Fetch loop directly instead of buffering every result.
func (lsm *LSM) ScanValues(keyMin, keyMax string, dir keyspace.Direction) ([]*model.Record, error) {
	s, err := lsm.Scan(keyMin, keyMax, dir)
	if err != nil {
		return nil, err
	}
	defer s.Reset()

	real, _ := lsm.grid.(*grid.Real)

	var out []*model.Record
	for {
		done := false
		var fetchErr error
		var value *model.Record
		delivered := false
		s.Fetch(func(v *model.Record, e error, d bool) {
			value, fetchErr, done, delivered = v, e, d, true
		})
		for !delivered {
			if real == nil || real.Pump() == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		if done {
			break
		}
		out = append(out, value)
	}
	return out, nil
}
