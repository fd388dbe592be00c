// Package hashing holds the consistent-hash snapshots shared by the
// client-side router and the server-side iteration layer. A snapshot is
// immutable for one topology version; routing state changes by swapping
// snapshots, never by mutating one.
package hashing

import (
	"encoding/binary"

	"github.com/gridkv/gridkv/common/sets"
)

// ConsistentHash maps keys and segments to owning servers for a single
// topology version. Implementations are immutable after construction.
type ConsistentHash interface {
	// GetSegment maps a key to its segment id.
	GetSegment(key []byte) int
	// GetServer returns the primary owner for a key.
	GetServer(key []byte) string
	// GetOwners returns the ordered owner list of a segment, primary first.
	GetOwners(segment int) []string
	// GetSegmentsByServer snapshots the owned segment set per server.
	GetSegmentsByServer() map[string]*sets.SegmentSet
	// NumSegments is the segment count of this snapshot.
	NumSegments() int
}

// hashV1 is the fnv-1a derived key hash of the original ring version.
func hashV1(key []byte) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for _, c := range key {
		h ^= uint32(c)
		h *= prime32
	}
	return h
}

// hashV2 is a 32-bit murmur3. Both the v2 ring and the segment table use
// it, so client routing and server segment filtering agree on placement.
func hashV2(key []byte) uint32 {
	const (
		c1 = 0xcc9e2d51
		c2 = 0x1b873593
	)
	var h uint32
	n := len(key)
	for len(key) >= 4 {
		k := binary.LittleEndian.Uint32(key)
		key = key[4:]

		k *= c1
		k = k<<15 | k>>17
		k *= c2

		h ^= k
		h = h<<13 | h>>19
		h = h*5 + 0xe6546b64
	}

	var k uint32
	switch len(key) {
	case 3:
		k ^= uint32(key[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(key[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(key[0])
		k *= c1
		k = k<<15 | k>>17
		k *= c2
		h ^= k
	}

	h ^= uint32(n)
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
