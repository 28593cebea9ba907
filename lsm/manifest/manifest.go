// Package manifest tracks which tables exist, at which level, and for which
// snapshot range they are visible. It is the scan engine's only source of
// truth for "what tables does level L have that could hold key K" -- the
// scan core never touches the LSM tree's own level bookkeeping directly.
package manifest

import (
	"sync"

	"github.com/google/btree"

	"hunddb/model/keyspace"
	"hunddb/model/table"
)

// Manifest is the external contract the scan engine depends on to discover
// tables level by level. A single call walks one level's tables in key
// order, skipping anything not visible at snapshot, and anything outside
// range.
type Manifest interface {
	// NextTable returns the next table.Info in level whose key range
	// overlaps range and is visible at snapshot, strictly beyond exclusive
	// (in the walk direction), or ok=false if no such table remains.
	NextTable(level int, snapshot keyspace.SnapshotID, rng keyspace.Range, exclusive *table.Info, dir keyspace.Direction) (info table.Info, ok bool)

	// LevelCount reports how many on-disk levels the manifest currently
	// tracks tables for.
	LevelCount() int
}

// less orders table.Info first by KeyMin then, for equal KeyMin, by ID so
// that entries for the same key range are still totally ordered (and can
// coexist across compactions/snapshots).
func less(a, b table.Info) bool {
	if a.KeyMin != b.KeyMin {
		return a.KeyMin < b.KeyMin
	}
	return a.ID < b.ID
}

// Tree is a Manifest backed by one btree.BTreeG[table.Info] per level,
// ordered by key range. Adding or retiring a table is O(log n). A single
// RWMutex guards every level, so a writer on any level briefly blocks
// readers of all levels.
type Tree struct {
	mu     sync.RWMutex
	levels []*btree.BTreeG[table.Info]
}

var _ Manifest = (*Tree)(nil)

// NewTree builds an empty manifest with levelCount levels.
func NewTree(levelCount int) *Tree {
	t := &Tree{levels: make([]*btree.BTreeG[table.Info], levelCount)}
	for i := range t.levels {
		t.levels[i] = btree.NewG[table.Info](32, less)
	}
	return t
}

// Add registers a newly-written table as visible starting at snapshot
// (inclusive), growing the level slice if needed.
func (t *Tree) Add(info table.Info, visibleFrom keyspace.SnapshotID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLevelLocked(info.Level)
	info.VisibleFrom = visibleFrom
	info.VisibleUntil = 0
	t.levels[info.Level].ReplaceOrInsert(info)
}

// Retire marks a table as no longer current as of snapshot: readers on an
// earlier snapshot still see it, readers on snapshot or later do not. The
// entry stays in the tree (older snapshots may still need it) until Evict
// removes it once no live snapshot can reach it.
func (t *Tree) Retire(id uint64, level int, asOf keyspace.SnapshotID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if level < 0 || level >= len(t.levels) {
		return
	}
	tree := t.levels[level]
	var found table.Info
	var ok bool
	tree.Ascend(func(item table.Info) bool {
		if item.ID == id {
			found, ok = item, true
			return false
		}
		return true
	})
	if !ok {
		return
	}
	found.VisibleUntil = asOf
	tree.ReplaceOrInsert(found)
}

// Evict drops any table whose VisibleUntil is at or before olderThan: no
// snapshot still in use can see it.
func (t *Tree) Evict(olderThan keyspace.SnapshotID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tree := range t.levels {
		var stale []table.Info
		tree.Ascend(func(item table.Info) bool {
			if item.VisibleUntil != 0 && item.VisibleUntil <= olderThan {
				stale = append(stale, item)
			}
			return true
		})
		for _, item := range stale {
			tree.Delete(item)
		}
	}
}

func (t *Tree) LevelCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.levels)
}

func (t *Tree) ensureLevelLocked(level int) {
	for level >= len(t.levels) {
		t.levels = append(t.levels, btree.NewG[table.Info](32, less))
	}
}

// NextTable walks level's btree in ascending (or descending, for
// Descending) key order starting strictly after exclusive, returning the
// first table.Info that overlaps rng and is visible at snapshot.
//
// Tables within a level are key-disjoint but a table's KeyMin can sit
// before rng.KeyMin while still overlapping it, so the walk starts from
// the very first (or last) table rather than seeking to rng's own
// boundary, and stops as soon as it passes rng entirely -- disjointness
// guarantees nothing further in that direction can overlap.
func (t *Tree) NextTable(level int, snapshot keyspace.SnapshotID, rng keyspace.Range, exclusive *table.Info, dir keyspace.Direction) (table.Info, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if level < 0 || level >= len(t.levels) {
		return table.Info{}, false
	}
	tree := t.levels[level]

	var result table.Info
	var found bool
	afterExclusive := exclusive == nil
	visit := func(item table.Info) bool {
		if !afterExclusive {
			if item.ID == exclusive.ID {
				afterExclusive = true
			}
			return true
		}
		if dir == keyspace.Descending && item.KeyMax < rng.KeyMin {
			return false
		}
		if dir == keyspace.Ascending && item.KeyMin > rng.KeyMax {
			return false
		}
		if !item.VisibleAt(snapshot) || !item.Overlaps(rng) {
			return true
		}
		result, found = item, true
		return false
	}

	if dir == keyspace.Descending {
		tree.Descend(visit)
	} else {
		tree.Ascend(visit)
	}
	return result, found
}
