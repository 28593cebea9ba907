package scan

import (
	"fmt"

	"hunddb/lsm/grid"
	"hunddb/lsm/manifest"
	"hunddb/model/block"
	block_location "hunddb/model/block_location"
	"hunddb/model/keyspace"
	model "hunddb/model/record"
	"hunddb/model/table"
)

// putTable registers a single-data-block table at level, holding records
// (already sorted by key), in both the manifest and the mock grid.
func putTable(mf *manifest.Tree, m *grid.Mock, id uint64, level int, records []*model.Record) table.Info {
	indexLoc := block_location.BlockLocation{FilePath: fmt.Sprintf("table-%d", id), BlockIndex: 0}
	dataLoc := block_location.BlockLocation{FilePath: fmt.Sprintf("table-%d", id), BlockIndex: 1}

	m.PutDataBlock(dataLoc, &block.DataBlock{Values: records})
	m.PutIndexBlock(indexLoc, &block.IndexBlock{Entries: []block.IndexEntry{
		{KeyMax: records[len(records)-1].Key, Location: dataLoc},
	}})

	info := table.Info{
		ID:       id,
		Level:    level,
		Location: indexLoc,
		KeyMin:   records[0].Key,
		KeyMax:   records[len(records)-1].Key,
	}
	mf.Add(info, 0)
	return info
}

func rec(key string, value string) *model.Record {
	return model.NewRecord(key, []byte(value), 0, false)
}

type mutableStub struct {
	values []*model.Record
}

func (m mutableStub) SortIntoValues() []*model.Record { return m.values }

type immutableStub struct {
	values    []*model.Record
	snapshot  keyspace.SnapshotID
	populated bool
}

func (i immutableStub) Values() []*model.Record         { return i.values }
func (i immutableStub) SnapshotMin() keyspace.SnapshotID { return i.snapshot }
func (i immutableStub) Populated() bool                 { return i.populated }

// runFetch drives Fetch to completion by pumping the mock grid, returning
// the delivered (value, err, done) triple for one Fetch call.
func runFetch(s *Scan, m *grid.Mock, maxTicks int) (value *model.Record, err error, done bool) {
	called := false
	s.Fetch(func(v *model.Record, e error, d bool) {
		value, err, done, called = v, e, d, true
	})
	for i := 0; i < maxTicks && !called; i++ {
		if m.Tick() == 0 && !called {
			break
		}
	}
	return
}
