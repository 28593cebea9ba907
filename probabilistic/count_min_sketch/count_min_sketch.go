package count_min_sketch

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	block_manager "hunddb/lsm/block_manager"
	crc_util "hunddb/utils/crc"
	"hunddb/utils/seeded_hash"
)

// CMS is a probabilistic data structure that efficiently estimates the
// frequency of elements in a set. It can over-estimate the count by the
// error rate requested when creating an instance, but never under-estimates.
// It works with uint32 for efficiency given the data sizes in this project.
type CMS struct {
	mu    sync.RWMutex
	m     uint32                     // Width of each row
	k     uint32                     // Number of hash functions (rows)
	h     []seeded_hash.HashWithSeed // One hash function per row
	table [][]uint32                 // k rows of m counters
}

// NewCMS creates a new Count-Min Sketch.
// epsilon: the desired relative error on frequency estimates.
// delta: the desired confidence that the estimate stays within epsilon.
func NewCMS(epsilon float64, delta float64) *CMS {
	m := CalculateM(epsilon)
	k := CalculateK(delta)
	table := make([][]uint32, k)
	for i := range table {
		table[i] = make([]uint32, m)
	}
	return &CMS{
		m:     uint32(m),
		k:     uint32(k),
		h:     seeded_hash.CreateHashFunctions(uint64(k)),
		table: table,
	}
}

// CalculateM returns the row width needed for a relative error of epsilon.
func CalculateM(epsilon float64) uint {
	return uint(math.Ceil(math.E / epsilon))
}

// CalculateK returns the number of rows needed for a confidence of 1-delta.
func CalculateK(delta float64) uint {
	return uint(math.Ceil(math.Log(1 / delta)))
}

// Add records one occurrence of item.
func (cms *CMS) Add(item []byte) {
	cms.mu.Lock()
	defer cms.mu.Unlock()
	for i := uint32(0); i < cms.k; i++ {
		j := cms.h[i].Hash(item) % uint64(cms.m)
		cms.table[i][j]++
	}
}

// Count estimates the frequency of item. The estimate is the minimum across
// all rows, which is always an over-estimate or exact.
func (cms *CMS) Count(item []byte) uint32 {
	cms.mu.RLock()
	defer cms.mu.RUnlock()
	min := ^uint32(0)
	for i := uint32(0); i < cms.k; i++ {
		j := cms.h[i].Hash(item) % uint64(cms.m)
		if cms.table[i][j] < min {
			min = cms.table[i][j]
		}
	}
	return min
}

// Serialize encodes the sketch as: 4 bytes m, 4 bytes k, then for each hash
// function a 4-byte seed length followed by the seed, then the k*m counters.
func (cms *CMS) Serialize() []byte {
	cms.mu.RLock()
	defer cms.mu.RUnlock()

	totalSize := 8
	for _, hash := range cms.h {
		totalSize += 4 + len(hash.Seed)
	}
	totalSize += int(cms.k) * int(cms.m) * 4

	data := make([]byte, totalSize)
	offset := 0
	binary.LittleEndian.PutUint32(data[offset:], cms.m)
	offset += 4
	binary.LittleEndian.PutUint32(data[offset:], cms.k)
	offset += 4

	for _, hash := range cms.h {
		binary.LittleEndian.PutUint32(data[offset:], uint32(len(hash.Seed)))
		offset += 4
		copy(data[offset:], hash.Seed)
		offset += len(hash.Seed)
	}

	for i := uint32(0); i < cms.k; i++ {
		for j := uint32(0); j < cms.m; j++ {
			binary.LittleEndian.PutUint32(data[offset:], cms.table[i][j])
			offset += 4
		}
	}
	return data
}

// Deserialize rebuilds a CMS from bytes produced by Serialize.
func Deserialize(data []byte) *CMS {
	if len(data) < 8 {
		return &CMS{}
	}
	offset := 0
	m := binary.LittleEndian.Uint32(data[offset:])
	offset += 4
	k := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	h := make([]seeded_hash.HashWithSeed, 0, k)
	for i := uint32(0); i < k; i++ {
		if offset+4 > len(data) {
			return &CMS{}
		}
		seedLen := binary.LittleEndian.Uint32(data[offset:])
		offset += 4
		if offset+int(seedLen) > len(data) {
			return &CMS{}
		}
		seed := make([]byte, seedLen)
		copy(seed, data[offset:offset+int(seedLen)])
		offset += int(seedLen)
		h = append(h, seeded_hash.HashWithSeed{Seed: seed})
	}

	table := make([][]uint32, k)
	for i := uint32(0); i < k; i++ {
		table[i] = make([]uint32, m)
		for j := uint32(0); j < m; j++ {
			if offset+4 > len(data) {
				return &CMS{m: m, k: k, h: h, table: table}
			}
			table[i][j] = binary.LittleEndian.Uint32(data[offset:])
			offset += 4
		}
	}

	return &CMS{
		m:     m,
		k:     k,
		h:     h,
		table: table,
	}
}

// SaveToDisk persists the sketch under a name-derived file, CRC-protected,
// the same way IndependentBloomFilter does.
func (cms *CMS) SaveToDisk(name string) error {
	serializedData := cms.Serialize()

	filename := fmt.Sprintf("count_min_sketch_%s", name)
	totalSize := 8 + len(serializedData)
	fileData := make([]byte, totalSize)
	binary.LittleEndian.PutUint64(fileData[0:8], uint64(len(serializedData)))
	copy(fileData[8:], serializedData)

	dataWithCRC := crc_util.AddCRCsToData(fileData)

	blockManager := block_manager.GetBlockManager()
	return blockManager.WriteToDisk(dataWithCRC, filename, 0)
}

// LoadCountMinSketchFromDisk loads a sketch previously saved with SaveToDisk.
func LoadCountMinSketchFromDisk(name string) (*CMS, error) {
	filename := fmt.Sprintf("count_min_sketch_%s", name)
	blockManager := block_manager.GetBlockManager()

	sizeBytes, _, err := blockManager.ReadFromDisk(filename, 0, 8)
	if err != nil {
		return nil, fmt.Errorf("file not found or corrupted: %v", err)
	}
	dataSize := binary.LittleEndian.Uint64(sizeBytes)

	serializedData, _, err := blockManager.ReadFromDisk(filename, 8+4, dataSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %v", err)
	}

	return Deserialize(serializedData), nil
}
