// Package stream builds the lazy, optionally segment/key-filtered entry
// sequences the iteration layer drains. Suppliers come in two shapes: a
// key-driven one scanning a local store, and a composed one delegating
// to an already-built sequence.
package stream

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/gridkv/gridkv/common/hashing"
	"github.com/gridkv/gridkv/common/sets"
	"github.com/gridkv/gridkv/proto"
	"github.com/gridkv/gridkv/server/store"
)

// Supplier produces a filtered sequence over one local data view. The
// onSegment callback fires exactly once per segment, when its last
// element has been produced; it is never called when the supplier has no
// hash function to assign segments with.
type Supplier interface {
	BuildIterator(ctx context.Context, segments *sets.SegmentSet, keys [][]byte, onSegment func(segment int)) (Iterator, error)
	RemovableIterator(it Iterator) Iterator
}

// KeySupplier yields key-only entries from a store scan. With a key
// filter set it probes containment per filtered key instead of scanning
// the whole keyspace, the filter set being expected small.
type KeySupplier struct {
	store store.Store
	hash  hashing.ConsistentHash
}

func NewKeySupplier(st store.Store, hash hashing.ConsistentHash) *KeySupplier {
	return &KeySupplier{store: st, hash: hash}
}

func (s *KeySupplier) BuildIterator(ctx context.Context, segments *sets.SegmentSet, keys [][]byte, onSegment func(int)) (Iterator, error) {
	return newSegmentIterator(ctx, s.store, s.hash, store.ScanOptions{}, segments, keys, onSegment), nil
}

func (s *KeySupplier) RemovableIterator(it Iterator) Iterator {
	return &removableIterator{Iterator: it, store: s.store}
}

// EntrySupplier yields full entries, optionally with expirable metadata.
type EntrySupplier struct {
	store         store.Store
	hash          hashing.ConsistentHash
	fetchMetadata bool
}

func NewEntrySupplier(st store.Store, hash hashing.ConsistentHash, fetchMetadata bool) *EntrySupplier {
	return &EntrySupplier{store: st, hash: hash, fetchMetadata: fetchMetadata}
}

func (s *EntrySupplier) BuildIterator(ctx context.Context, segments *sets.SegmentSet, keys [][]byte, onSegment func(int)) (Iterator, error) {
	opts := store.ScanOptions{FetchValues: true, FetchMetadata: s.fetchMetadata}
	return newSegmentIterator(ctx, s.store, s.hash, opts, segments, keys, onSegment), nil
}

func (s *EntrySupplier) RemovableIterator(it Iterator) Iterator {
	return &removableIterator{Iterator: it, store: s.store}
}

// IntermediateSupplier wraps a sequence already produced by earlier
// transformation steps. Filtering is assumed pushed upstream.
type IntermediateSupplier struct {
	it Iterator
}

func NewIntermediateSupplier(it Iterator) *IntermediateSupplier {
	return &IntermediateSupplier{it: it}
}

func (s *IntermediateSupplier) BuildIterator(ctx context.Context, segments *sets.SegmentSet, keys [][]byte, onSegment func(int)) (Iterator, error) {
	return s.it, nil
}

func (s *IntermediateSupplier) RemovableIterator(it Iterator) Iterator {
	return it
}

// segmentIterator drains the view segment by segment, ascending; one
// segment's entries are buffered at a time, and onSegment fires when a
// segment's buffer empties. Without a hash function the whole view is a
// single unreported pass.
type segmentIterator struct {
	store      store.Store
	hash       hashing.ConsistentHash
	opts       store.ScanOptions
	keys       [][]byte
	onSegment  func(int)
	pending    []int
	current    int
	currentSet bool
	buf        []*proto.Entry
	bufIdx     int
	plain      bool
	started    bool
	done       bool
}

func newSegmentIterator(ctx context.Context, st store.Store, hash hashing.ConsistentHash,
	opts store.ScanOptions, segments *sets.SegmentSet, keys [][]byte, onSegment func(int),
) *segmentIterator {
	it := &segmentIterator{
		store:     st,
		hash:      hash,
		opts:      opts,
		keys:      keys,
		onSegment: onSegment,
	}
	if hash == nil {
		it.plain = true
		return it
	}
	if segments != nil {
		it.pending = segments.Slice()
	} else {
		it.pending = sets.Full(hash.NumSegments()).Slice()
	}
	trace.SpanFromContextSafe(ctx).Debugf("segment iterator over %d segments", len(it.pending))
	return it
}

func (s *segmentIterator) Next(ctx context.Context) (*proto.Entry, error) {
	for {
		if s.done {
			return nil, nil
		}
		if s.bufIdx < len(s.buf) {
			entry := s.buf[s.bufIdx]
			s.bufIdx++
			return entry, nil
		}

		// current segment drained
		if s.currentSet {
			s.currentSet = false
			if s.onSegment != nil {
				s.onSegment(s.current)
			}
		}

		if s.plain {
			if s.started {
				s.done = true
				return nil, nil
			}
			s.started = true
			if err := s.fill(ctx, -1); err != nil {
				return nil, err
			}
			continue
		}

		if len(s.pending) == 0 {
			s.done = true
			return nil, nil
		}
		segment := s.pending[0]
		s.pending = s.pending[1:]
		if err := s.fill(ctx, segment); err != nil {
			return nil, err
		}
		s.current = segment
		s.currentSet = true
	}
}

// fill buffers one segment's entries, segment -1 meaning "everything".
func (s *segmentIterator) fill(ctx context.Context, segment int) error {
	s.buf = s.buf[:0]
	s.bufIdx = 0

	if s.keys != nil {
		for _, key := range s.keys {
			if segment >= 0 && s.hash.GetSegment(key) != segment {
				continue
			}
			entry, err := s.store.Load(ctx, key)
			if err != nil {
				return err
			}
			if entry == nil {
				continue
			}
			s.buf = append(s.buf, s.project(entry))
		}
		return nil
	}

	return s.store.Scan(ctx, s.opts, func(entry *proto.Entry) bool {
		if segment >= 0 && s.hash.GetSegment(entry.Key) != segment {
			return true
		}
		s.buf = append(s.buf, entry)
		return true
	})
}

// project trims a loaded entry down to the scan options, so the key
// filter path produces the same shape as the scan path.
func (s *segmentIterator) project(entry *proto.Entry) *proto.Entry {
	produced := &proto.Entry{Key: entry.Key}
	if s.opts.FetchValues {
		produced.Value = entry.Value
	}
	if s.opts.FetchMetadata {
		produced.Created = entry.Created
		produced.LastUsed = entry.LastUsed
		produced.Lifespan = entry.Lifespan
		produced.MaxIdle = entry.MaxIdle
	}
	return produced
}

func (s *segmentIterator) Close() {
	s.done = true
	s.buf = nil
	s.pending = nil
}
