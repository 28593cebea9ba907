package bloom_filter

import (
	"encoding/binary"
	"math"

	"hunddb/utils/seeded_hash"
)

// BloomFilter is a probabilistic data structure that efficiently tests whether
// an element is in a set. It can tell with 100% certainty that an element is
// absent, but a positive answer carries a false positive rate fixed at
// construction time. It works with uint32 for efficiency given the data size
// in this project.
type BloomFilter struct {
	m uint32                      // Size of the bit array
	k uint32                      // Number of hash functions
	h []seeded_hash.HashWithSeed  // Array of hash functions
	b []byte                      // Byte array representing the bit array
}

// NewBloomFilter creates a new instance of a Bloom Filter.
// expectedElements: the number of elements expected to be added to the filter.
// falsePositiveRate: the desired false positive rate.
func NewBloomFilter(expectedElements int, falsePositiveRate float64) *BloomFilter {
	m := CalculateM(expectedElements, falsePositiveRate)
	k := CalculateK(expectedElements, m)
	return &BloomFilter{
		m: uint32(m),
		k: uint32(k),
		h: seeded_hash.CreateHashFunctions(uint64(k)),
		b: make([]byte, uint32(math.Ceil(float64(m)/8))),
	}
}

// CalculateM computes the bit array size needed to hold expectedElements at
// the desired falsePositiveRate.
func CalculateM(expectedElements int, falsePositiveRate float64) uint {
	return uint(math.Ceil(-(float64(expectedElements) * math.Log(falsePositiveRate)) / math.Pow(math.Log(2), 2)))
}

// CalculateK computes the number of hash functions for a filter of size m
// sized for expectedElements.
func CalculateK(expectedElements int, m uint) uint {
	return uint(math.Ceil((float64(m) / float64(expectedElements)) * math.Log(2)))
}

// Add inserts an element into the Bloom Filter by setting the corresponding bits to 1.
func (bf *BloomFilter) Add(item []byte) {
	for i := uint32(0); i < bf.k; i++ {
		hash := bf.h[i].Hash(item) % uint64(bf.m)
		bitMask := byte(1 << (hash % 8))
		bf.b[hash/8] |= bitMask
	}
}

// Contains checks if an item is in the Bloom Filter. It can tell with 100%
// certainty that the element is absent, but a positive answer is only
// correct up to the filter's configured false positive rate.
func (bf *BloomFilter) Contains(item []byte) bool {
	for i := uint32(0); i < bf.k; i++ {
		hash := bf.h[i].Hash(item) % uint64(bf.m)
		bitMask := byte(1 << (hash % 8))
		if bf.b[hash/8]&bitMask == 0 {
			return false
		}
	}
	return true
}

// Serialize encodes the filter as: 4 bytes m, 4 bytes k, then for each hash
// function a 4-byte seed length followed by the seed, then the bit array.
func (bf *BloomFilter) Serialize() []byte {
	totalSize := 8 + len(bf.b)
	for _, hash := range bf.h {
		totalSize += 4 + len(hash.Seed)
	}

	data := make([]byte, totalSize)
	offset := 0
	binary.LittleEndian.PutUint32(data[offset:], bf.m)
	offset += 4
	binary.LittleEndian.PutUint32(data[offset:], bf.k)
	offset += 4

	for _, hash := range bf.h {
		binary.LittleEndian.PutUint32(data[offset:], uint32(len(hash.Seed)))
		offset += 4
		copy(data[offset:], hash.Seed)
		offset += len(hash.Seed)
	}
	copy(data[offset:], bf.b)
	return data
}

// Deserialize rebuilds a Bloom Filter from bytes produced by Serialize.
// Malformed input yields a filter with no hash functions and an empty bit
// array rather than panicking; with no hash functions, a subsequent Contains
// reports every item as possibly present.
func Deserialize(data []byte) *BloomFilter {
	if len(data) < 8 {
		return &BloomFilter{}
	}
	offset := 0
	m := binary.LittleEndian.Uint32(data[offset:])
	offset += 4
	k := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	h := make([]seeded_hash.HashWithSeed, 0, k)
	for i := uint32(0); i < k; i++ {
		if offset+4 > len(data) {
			return &BloomFilter{}
		}
		seedLen := binary.LittleEndian.Uint32(data[offset:])
		offset += 4

		if offset+int(seedLen) > len(data) {
			return &BloomFilter{}
		}
		seed := make([]byte, seedLen)
		copy(seed, data[offset:offset+int(seedLen)])
		offset += int(seedLen)
		h = append(h, seeded_hash.HashWithSeed{Seed: seed})
	}
	if offset > len(data) {
		return &BloomFilter{}
	}
	b := make([]byte, len(data)-offset)
	copy(b, data[offset:])
	return &BloomFilter{
		m: m,
		k: k,
		h: h,
		b: b,
	}
}
