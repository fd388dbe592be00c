package hashing

import "github.com/gridkv/gridkv/proto"

// Factory resolves a pushed hash-function version tag to a constructor.
// The table is fixed at construction; unknown versions resolve to nil so
// callers can degrade to non-hash-aware routing instead of failing.
type Factory struct {
	ring    map[int]func() *RingHash
	segment map[int]func() *SegmentHash
}

func NewFactory() *Factory {
	return &Factory{
		ring: map[int]func() *RingHash{
			proto.HashVersionRingV1: func() *RingHash { return newRingHash(proto.HashVersionRingV1) },
			proto.HashVersionRingV2: func() *RingHash { return newRingHash(proto.HashVersionRingV2) },
		},
		segment: map[int]func() *SegmentHash{
			proto.HashVersionSegment: func() *SegmentHash { return newSegmentHash() },
		},
	}
}

// NewRing resolves a ring-shape version, nil when unsupported.
func (f *Factory) NewRing(version int) *RingHash {
	ctor := f.ring[version]
	if ctor == nil {
		return nil
	}
	return ctor()
}

// NewSegment resolves a segment-table version, nil when unsupported.
func (f *Factory) NewSegment(version int) *SegmentHash {
	ctor := f.segment[version]
	if ctor == nil {
		return nil
	}
	return ctor()
}
