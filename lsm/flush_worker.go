package lsm

import (
	"hunddb/lsm/grid"
	memtable "hunddb/lsm/memtable"
	"hunddb/lsm/sstable"
	"hunddb/model/keyspace"
	"hunddb/model/table"
	"sync"
)

// flushJob represents a single memtable flush task with a pre-assigned SSTable index
type flushJob struct {
	pos   int                // position in batch (0 = oldest)
	index int                // assigned SSTable index
	mt    *memtable.MemTable // memtable to flush
	resCh chan<- flushResult // channel to send the result
}

type flushResult struct {
	pos   int
	index int
	err   error
}

// FlushPool is a simple worker pool used to concurrently flush memtables
type FlushPool struct {
	jobs chan flushJob
	wg   sync.WaitGroup
}

// NewFlushPool creates a pool with the given worker count and starts workers immediately
func NewFlushPool(workerCount int) *FlushPool {
	p := &FlushPool{
		jobs: make(chan flushJob),
	}
	p.start(workerCount)
	return p
}

func (p *FlushPool) start(workerCount int) {
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				// Perform the flush
				err := job.mt.Flush(job.index)
				job.resCh <- flushResult{pos: job.pos, index: job.index, err: err}
			}
		}()
	}
}

// Stop gracefully stops the pool; should be called on shutdown if needed
func (p *FlushPool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

// submitBatch submits a batch of flush jobs and commits results to level 0 in-order (oldest to newest)
func (p *FlushPool) submitBatch(lsm *LSM, memtables []*memtable.MemTable, indexes []int, lowWaterMarks []uint64) {
	n := len(memtables)
	resCh := make(chan flushResult, n)

	// Collector and committer
	go func() {
		pending := make(map[int]flushResult, n)
		next := 0
		committed := 0
		for committed < n {
			r := <-resCh
			pending[r.pos] = r
			for {
				rr, ok := pending[next]
				if !ok {
					break
				}
				// Only append to levels when the specific position is done (ensures ordering)
				if rr.err == nil {
					keyMin, keyMax, boundsErr := sstable.GetSSBoundaries(rr.index)

					// Commit to level 0 under its compaction lock to avoid race with compaction
					lsm.levelLocks[0].Lock()
					lsm.mu.Lock()
					lsm.levels[0] = append(lsm.levels[0], uint64(rr.index))

					if boundsErr != nil {
						lsm.logger.Warn().Err(boundsErr).Int("table", rr.index).Msg("failed to compute table boundaries for manifest")
					} else {
						lsm.snapshot++
						lsm.manifest.Add(table.Info{
							ID:          uint64(rr.index),
							Level:       0,
							Location:    grid.IndexLocation(uint64(rr.index)),
							KeyMin:      keyMin,
							KeyMax:      keyMax,
							VisibleFrom: keyspace.SnapshotID(lsm.snapshot),
						}, keyspace.SnapshotID(lsm.snapshot))
					}

					// After successful flush, use the memtable's low water mark to clean up WAL segments
					// The low water mark for this memtable position tells us which WAL segments can be deleted
					if rr.pos < len(lowWaterMarks) {
						lowWaterMark := lowWaterMarks[rr.pos]
						if lowWaterMark > 0 {
							// Clean up WAL segments below this low water mark
							if err := lsm.wal.DeleteOldLogs(lowWaterMark); err != nil {
								lsm.logger.Warn().Err(err).Uint64("watermark", lowWaterMark).Msg("failed to delete old WAL logs")
							}
						}
					}

					lsm.mu.Unlock()
					lsm.levelLocks[0].Unlock()

					// After successful append, consider compactions
					lsm.maybeStartCompactions()
				}
				delete(pending, next)
				next++
				committed++
			}
			if committed == n {
				// Every table in this batch is now either in the manifest
				// or permanently dropped on error; the frozen view scans
				// were reading from is no longer the only copy of this
				// data, so it can be released.
				lsm.mu.Lock()
				if lsm.immutable != nil {
					lsm.immutable.Free()
					lsm.immutable = nil
				}
				lsm.mu.Unlock()
			}
		}
	}()

	// Enqueue jobs in order (oldest first)
	for i := 0; i < n; i++ {
		p.jobs <- flushJob{pos: i, index: indexes[i], mt: memtables[i], resCh: resCh}
	}
}
