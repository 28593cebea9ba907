package grid

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"hunddb/lsm/sstable"
	"hunddb/model/block"
	block_location "hunddb/model/block_location"
	model "hunddb/model/record"
)

// Real adapts hunddb's on-disk SSTable reader to the async Grid contract.
// It groups each table's sorted records into fixed-size chunks -- one
// IndexBlock entry and one DataBlock per chunk -- the same "boundary key +
// location" shape spec.md's index blocks describe, built on top of
// hunddb's existing SSTableIterator rather than a new on-disk format.
//
// Reads run on worker goroutines bounded by an errgroup.Group; completions
// land on a single-consumer queue and are only handed to callbacks from
// Pump, which the event loop calls on its own goroutine. So although I/O
// happens off-thread, at most one scan callback is ever in flight, same as
// Mock.
type Real struct {
	chunkSize int

	group *errgroup.Group

	mu     sync.Mutex
	ready  []func()
	tables map[uint64][]*model.Record
}

var _ Grid = (*Real)(nil)

// NewReal builds a Real grid that groups chunkSize records per index/data
// block pair and bounds concurrent background reads to maxInFlight.
func NewReal(chunkSize, maxInFlight int) *Real {
	if chunkSize < 1 {
		chunkSize = 1
	}
	g := &errgroup.Group{}
	g.SetLimit(maxInFlight)
	return &Real{
		chunkSize: chunkSize,
		group:     g,
		tables:    make(map[uint64][]*model.Record),
	}
}

// tableFile is the synthetic BlockLocation.FilePath used to identify which
// table and chunk a read targets; BlockIndex carries the chunk number.
func tableFile(tableID uint64) string {
	return fmt.Sprintf("sstable:%d", tableID)
}

func parseTableFile(path string) (uint64, bool) {
	var id uint64
	n, err := fmt.Sscanf(path, "sstable:%d", &id)
	return id, err == nil && n == 1
}

// IndexLocation returns the BlockLocation to use as a table.Info's address
// for reading that table's whole index block.
func IndexLocation(tableID uint64) block_location.BlockLocation {
	return block_location.BlockLocation{FilePath: tableFile(tableID), BlockIndex: 0}
}

func (g *Real) ReadIndexBlock(slot Slot, loc block_location.BlockLocation, checksum uint32, done func(*block.IndexBlock, error)) {
	tableID, ok := parseTableFile(loc.FilePath)
	if !ok {
		g.complete(func() { done(nil, fmt.Errorf("grid: malformed index location %+v", loc)) })
		return
	}
	g.group.Go(func() error {
		records, err := g.loadTable(tableID)
		result := func() {
			if err != nil {
				done(nil, err)
				return
			}
			done(buildIndexBlock(tableID, records, g.chunkSize), nil)
		}
		g.complete(result)
		return nil
	})
}

func (g *Real) ReadDataBlock(slot Slot, loc block_location.BlockLocation, checksum uint32, done func(*block.DataBlock, error)) {
	tableID, ok := parseTableFile(loc.FilePath)
	if !ok {
		g.complete(func() { done(nil, fmt.Errorf("grid: malformed data location %+v", loc)) })
		return
	}
	chunk := int(loc.BlockIndex)
	g.group.Go(func() error {
		records, err := g.loadTable(tableID)
		result := func() {
			if err != nil {
				done(nil, err)
				return
			}
			start := chunk * g.chunkSize
			if start >= len(records) {
				done(&block.DataBlock{}, nil)
				return
			}
			end := start + g.chunkSize
			if end > len(records) {
				end = len(records)
			}
			done(&block.DataBlock{Values: records[start:end]}, nil)
		}
		g.complete(result)
		return nil
	})
}

func (g *Real) OnNextTick(slot Slot, done func()) {
	g.complete(done)
}

// complete appends call to the delivery queue; Pump drains it.
func (g *Real) complete(call func()) {
	g.mu.Lock()
	g.ready = append(g.ready, call)
	g.mu.Unlock()
}

// Pump delivers every callback that has completed since the last Pump, in
// arrival order, on the calling goroutine. The event loop calls this once
// per iteration.
func (g *Real) Pump() int {
	g.mu.Lock()
	batch := g.ready
	g.ready = nil
	g.mu.Unlock()

	for _, call := range batch {
		call()
	}
	return len(batch)
}

// loadTable returns tableID's full sorted record set, reading it from disk
// via hunddb's SSTableIterator on first access and caching it thereafter.
func (g *Real) loadTable(tableID uint64) ([]*model.Record, error) {
	g.mu.Lock()
	if cached, ok := g.tables[tableID]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	iter, err := sstable.OpenSequentialIterator(int(tableID))
	if err != nil {
		return nil, fmt.Errorf("grid: opening table %d: %w", tableID, err)
	}
	var records []*model.Record
	for iter.HasNext() {
		records = append(records, iter.Current())
		if err := iter.Advance(); err != nil {
			return nil, fmt.Errorf("grid: reading table %d: %w", tableID, err)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })

	g.mu.Lock()
	g.tables[tableID] = records
	g.mu.Unlock()
	return records, nil
}

// Invalidate drops a cached table, e.g. after it is compacted away.
func (g *Real) Invalidate(tableID uint64) {
	g.mu.Lock()
	delete(g.tables, tableID)
	g.mu.Unlock()
}

func buildIndexBlock(tableID uint64, records []*model.Record, chunkSize int) *block.IndexBlock {
	if len(records) == 0 {
		return &block.IndexBlock{}
	}
	entries := make([]block.IndexEntry, 0, (len(records)+chunkSize-1)/chunkSize)
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunkIndex := start / chunkSize
		sum := crc32.ChecksumIEEE([]byte(records[end-1].Key))
		entries = append(entries, block.IndexEntry{
			KeyMax:   records[end-1].Key,
			Location: block_location.BlockLocation{FilePath: tableFile(tableID), BlockIndex: uint64(chunkIndex)},
			Checksum: sum,
		})
	}
	return &block.IndexBlock{Entries: entries}
}
