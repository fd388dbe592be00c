package stream

import (
	"context"

	"github.com/gridkv/gridkv/proto"
)

// Iterator is a lazy sequence of entries. Next returns (nil, nil) once
// the sequence is exhausted, mirroring a list reader hitting its end.
type Iterator interface {
	Next(ctx context.Context) (*proto.Entry, error)
	Close()
}

// Remover is implemented by removable iterator views: Remove deletes the
// last returned element from the owning collection.
type Remover interface {
	Remove(ctx context.Context) error
}

// SliceIterator walks a fixed slice, used for composed sequences and in
// tests.
type SliceIterator struct {
	entries []*proto.Entry
	idx     int
}

func NewSliceIterator(entries []*proto.Entry) *SliceIterator {
	return &SliceIterator{entries: entries}
}

func (s *SliceIterator) Next(ctx context.Context) (*proto.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.idx >= len(s.entries) {
		return nil, nil
	}
	entry := s.entries[s.idx]
	s.idx++
	return entry, nil
}

func (s *SliceIterator) Close() {
	s.entries = nil
}
