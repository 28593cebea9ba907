package grid

import (
	"sync"

	"hunddb/model/block"
	block_location "hunddb/model/block_location"
)

// Mock is a deterministic, step-driven Grid for tests. Nothing completes
// until the test calls Tick (or PumpUntilIdle): reads and next-tick
// wakeups queue in call order. A test can also force a specific block's
// read to need extra ticks before it completes, simulating a level that is
// "Drained" -- still awaiting I/O -- while the merge moves on to other
// streams (spec scenario S7).
type Mock struct {
	mu      sync.Mutex
	queue   []func()
	indexes map[block_location.BlockLocation]*block.IndexBlock
	datas   map[block_location.BlockLocation]*block.DataBlock
	delay   map[block_location.BlockLocation]int
}

var _ Grid = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{
		indexes: make(map[block_location.BlockLocation]*block.IndexBlock),
		datas:   make(map[block_location.BlockLocation]*block.DataBlock),
		delay:   make(map[block_location.BlockLocation]int),
	}
}

// PutIndexBlock registers the block to hand back for reads at loc.
func (m *Mock) PutIndexBlock(loc block_location.BlockLocation, b *block.IndexBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[loc] = b
}

// PutDataBlock registers the block to hand back for reads at loc.
func (m *Mock) PutDataBlock(loc block_location.BlockLocation, b *block.DataBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datas[loc] = b
}

// DelayNextReadAt forces the next read issued against loc to consume
// ticks additional Tick calls before its callback fires.
func (m *Mock) DelayNextReadAt(loc block_location.BlockLocation, ticks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay[loc] = ticks
}

func (m *Mock) ReadIndexBlock(slot Slot, loc block_location.BlockLocation, checksum uint32, done func(*block.IndexBlock, error)) {
	m.schedule(loc, func() {
		m.mu.Lock()
		b := m.indexes[loc]
		m.mu.Unlock()
		done(b, nil)
	})
}

func (m *Mock) ReadDataBlock(slot Slot, loc block_location.BlockLocation, checksum uint32, done func(*block.DataBlock, error)) {
	m.schedule(loc, func() {
		m.mu.Lock()
		b := m.datas[loc]
		m.mu.Unlock()
		done(b, nil)
	})
}

func (m *Mock) OnNextTick(slot Slot, done func()) {
	m.mu.Lock()
	m.queue = append(m.queue, done)
	m.mu.Unlock()
}

// schedule enqueues call for the next Tick, unless loc has an outstanding
// artificial delay, in which case it re-enqueues itself until the delay is
// exhausted.
func (m *Mock) schedule(loc block_location.BlockLocation, call func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delay[loc] <= 0 {
		m.queue = append(m.queue, call)
		return
	}
	m.delay[loc]--
	m.queue = append(m.queue, func() { m.schedule(loc, call) })
}

// Tick runs every callback queued as of this call, in FIFO order, exactly
// once. Callbacks that enqueue further work (including schedule's own
// delay requeue) run on a subsequent Tick, not this one.
func (m *Mock) Tick() int {
	m.mu.Lock()
	batch := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, call := range batch {
		call()
	}
	return len(batch)
}

// PumpUntilIdle ticks until no callback is queued, bounded by maxTicks as a
// safety net against a test that accidentally never converges.
func (m *Mock) PumpUntilIdle(maxTicks int) {
	for i := 0; i < maxTicks; i++ {
		if m.Tick() == 0 {
			return
		}
	}
	panic("grid: Mock.PumpUntilIdle exceeded maxTicks")
}
