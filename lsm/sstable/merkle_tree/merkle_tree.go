package merkle_tree

//cSpell:ignore merkle

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

const hashSize = md5.Size

// MerkleNode is a node in the Merkle tree. Leaves hold the hash of a single
// block (or a record hash handed in pre-computed); internal nodes hold the
// hash of their two children's hashes concatenated.
type MerkleNode struct {
	hashedValue [hashSize]byte
	leftChild   *MerkleNode
	rightChild  *MerkleNode
}

// GetHash returns the node's hash, keyed the same way sstable's
// hash-to-offset lookup is (map[[md5.Size]byte]uint64), so a mismatched node
// found by Validate can be mapped straight back to the record it came from.
func (node *MerkleNode) GetHash() [hashSize]byte {
	return node.hashedValue
}

// A Merkle tree is a binary tree used to verify the integrity of a set of
// blocks without re-reading all of them: only the root, and the path down to
// a mismatching leaf, needs to be compared.
type MerkleTree struct {
	merkleRoot *MerkleNode
}

// NewMerkleTree builds a Merkle tree over blocks. When alreadyHashed is
// false, each block is md5-hashed into a leaf; when true, blocks are assumed
// to already be md5.Size-byte hashes (e.g. record hashes computed once
// during a sequential SSTable read, reused here instead of re-hashing the
// full records). An odd number of nodes at any level is padded with a
// zero-hash neutral node so every internal node has exactly two children.
func NewMerkleTree(blocks [][]byte, alreadyHashed bool) (*MerkleTree, error) {
	if len(blocks) == 0 {
		return &MerkleTree{merkleRoot: &MerkleNode{hashedValue: md5.Sum([]byte{})}}, nil
	}

	nodes := make([]*MerkleNode, 0, len(blocks))
	for _, block := range blocks {
		var h [hashSize]byte
		if alreadyHashed {
			if len(block) != hashSize {
				return nil, fmt.Errorf("merkle_tree: expected a %d-byte hash, got %d bytes", hashSize, len(block))
			}
			copy(h[:], block)
		} else {
			h = md5.Sum(block)
		}
		nodes = append(nodes, &MerkleNode{hashedValue: h})
	}

	for len(nodes) > 1 {
		if len(nodes)%2 == 1 {
			nodes = append(nodes, &MerkleNode{})
		}
		next := make([]*MerkleNode, 0, len(nodes)/2)
		for i := 0; i < len(nodes); i += 2 {
			left, right := nodes[i], nodes[i+1]
			combined := make([]byte, 0, 2*hashSize)
			combined = append(combined, left.hashedValue[:]...)
			combined = append(combined, right.hashedValue[:]...)
			next = append(next, &MerkleNode{hashedValue: md5.Sum(combined), leftChild: left, rightChild: right})
		}
		nodes = next
	}
	return &MerkleTree{merkleRoot: nodes[0]}, nil
}

// Height is the number of edges on the path from the root down to a leaf.
// Runs in O(height) by always descending through leftChild, since the
// leftmost path is never shortened by padding.
func (mTree *MerkleTree) Height() uint64 {
	var height uint64
	node := mTree.merkleRoot
	for node != nil && node.leftChild != nil {
		node = node.leftChild
		height++
	}
	return height
}

// MaxNumOfNodes is the number of nodes a perfect binary tree of this height
// would have.
func (mTree *MerkleTree) MaxNumOfNodes() uint64 {
	return (uint64(1) << (mTree.Height() + 1)) - 1
}

// Validate compares mTree against otherMTree node by node, short-circuiting
// into matching subtrees whose hashes already agree. It returns whether the
// trees match, and on a mismatch the leaves that differ on each side so the
// caller can map them back to the records (or blocks) they came from.
func (mTree *MerkleTree) Validate(otherMTree *MerkleTree) (bool, []*MerkleNode, []*MerkleNode) {
	var mismatchedSelf, mismatchedOther []*MerkleNode
	compareNodes(mTree.merkleRoot, otherMTree.merkleRoot, &mismatchedSelf, &mismatchedOther)
	return len(mismatchedSelf) == 0 && len(mismatchedOther) == 0, mismatchedSelf, mismatchedOther
}

func compareNodes(a, b *MerkleNode, mismatchedA, mismatchedB *[]*MerkleNode) {
	if a == nil && b == nil {
		return
	}
	if a == nil || b == nil {
		if a != nil {
			*mismatchedA = append(*mismatchedA, a)
		}
		if b != nil {
			*mismatchedB = append(*mismatchedB, b)
		}
		return
	}
	if a.hashedValue == b.hashedValue {
		return
	}
	if a.leftChild == nil && a.rightChild == nil && b.leftChild == nil && b.rightChild == nil {
		*mismatchedA = append(*mismatchedA, a)
		*mismatchedB = append(*mismatchedB, b)
		return
	}
	compareNodes(a.leftChild, b.leftChild, mismatchedA, mismatchedB)
	compareNodes(a.rightChild, b.rightChild, mismatchedA, mismatchedB)
}

// BFS visits every node level by level, root first.
func (mTree *MerkleTree) BFS(visit func(node *MerkleNode)) {
	if mTree.merkleRoot == nil {
		return
	}
	queue := []*MerkleNode{mTree.merkleRoot}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visit(node)
		if node.leftChild != nil {
			queue = append(queue, node.leftChild)
		}
		if node.rightChild != nil {
			queue = append(queue, node.rightChild)
		}
	}
}

// DFS visits every node pre-order: a node before either of its children.
func (mTree *MerkleTree) DFS(visit func(node *MerkleNode)) {
	var walk func(node *MerkleNode)
	walk = func(node *MerkleNode) {
		if node == nil {
			return
		}
		visit(node)
		walk(node.leftChild)
		walk(node.rightChild)
	}
	walk(mTree.merkleRoot)
}

// leaves collects the tree's leaf hashes left to right. Only the leaves are
// ever persisted; internal node hashes are cheap to recompute on load and
// keeping them out of the wire format avoids duplicating the same
// information at every level.
// Padding nodes added above the bottom level are childless but are not
// leaves of the bottom level; they are skipped, because rebuilding from the
// bottom level recreates them.
func (mTree *MerkleTree) leaves() [][hashSize]byte {
	var out [][hashSize]byte
	height := mTree.Height()
	var walk func(node *MerkleNode, depth uint64)
	walk = func(node *MerkleNode, depth uint64) {
		if node == nil {
			return
		}
		if node.leftChild == nil && node.rightChild == nil {
			if depth == height {
				out = append(out, node.hashedValue)
			}
			return
		}
		walk(node.leftChild, depth+1)
		walk(node.rightChild, depth+1)
	}
	walk(mTree.merkleRoot, 0)
	return out
}

// Serialize encodes the tree as a leaf count followed by each leaf hash in
// order. Deserialize rebuilds the same internal structure from those leaves,
// since combining child hashes is deterministic.
func (mTree *MerkleTree) Serialize() []byte {
	leaves := mTree.leaves()
	buf := make([]byte, 4+len(leaves)*hashSize)
	binary.BigEndian.PutUint32(buf[:4], uint32(len(leaves)))
	for i, h := range leaves {
		copy(buf[4+i*hashSize:], h[:])
	}
	return buf
}

// Deserialize rebuilds a MerkleTree from bytes produced by Serialize.
func Deserialize(data []byte) *MerkleTree {
	if len(data) < 4 {
		return &MerkleTree{merkleRoot: &MerkleNode{hashedValue: md5.Sum([]byte{})}}
	}
	count := binary.BigEndian.Uint32(data[:4])
	leafHashes := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		start := 4 + int(i)*hashSize
		if start+hashSize > len(data) {
			break
		}
		leafHashes = append(leafHashes, data[start:start+hashSize])
	}
	tree, err := NewMerkleTree(leafHashes, true)
	if err != nil {
		return &MerkleTree{merkleRoot: &MerkleNode{hashedValue: md5.Sum([]byte{})}}
	}
	return tree
}
