package stream

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridkv/gridkv/common/sets"
	"github.com/gridkv/gridkv/proto"
	"github.com/gridkv/gridkv/server/store"
)

// modHash assigns key "k-<i>" to segment i % numSegments, making segment
// membership explicit in tests.
type modHash struct {
	numSegments int
}

func (m *modHash) GetSegment(key []byte) int {
	var i int
	fmt.Sscanf(string(key), "k-%d", &i)
	return i % m.numSegments
}

func (m *modHash) GetServer(key []byte) string                      { return "node-a:9100" }
func (m *modHash) GetOwners(segment int) []string                   { return []string{"node-a:9100"} }
func (m *modHash) GetSegmentsByServer() map[string]*sets.SegmentSet { return nil }
func (m *modHash) NumSegments() int                                 { return m.numSegments }

func seededStore(t *testing.T, n int) *store.MemStore {
	s := store.NewMemStore()
	for i := 0; i < n; i++ {
		require.NoError(t, s.Write(context.Background(), &proto.Entry{
			Key:     []byte(fmt.Sprintf("k-%d", i)),
			Value:   []byte(fmt.Sprintf("v-%d", i)),
			Created: int64(i),
		}))
	}
	return s
}

func drain(t *testing.T, it Iterator) []*proto.Entry {
	var out []*proto.Entry
	for {
		entry, err := it.Next(context.Background())
		require.NoError(t, err)
		if entry == nil {
			return out
		}
		out = append(out, entry)
	}
}

func TestKeySupplier_SegmentFilter(t *testing.T) {
	s := seededStore(t, 20)
	defer s.Close()
	hash := &modHash{numSegments: 4}
	supplier := NewKeySupplier(s, hash)

	requested := sets.From(4, 1)
	it, err := supplier.BuildIterator(context.Background(), requested, nil, nil)
	require.NoError(t, err)
	defer it.Close()

	produced := make(map[string]bool)
	for _, entry := range drain(t, it) {
		require.Nil(t, entry.Value) // key-driven sequences carry no values
		produced[string(entry.Key)] = true
	}

	// exactly the keys whose segment is 1, nothing else
	expected := make(map[string]bool)
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("k-%d", i)
		if hash.GetSegment([]byte(key)) == 1 {
			expected[key] = true
		}
	}
	require.Equal(t, expected, produced)
	require.Len(t, produced, 5)
}

func TestKeySupplier_KeyFilterProbes(t *testing.T) {
	s := seededStore(t, 10)
	defer s.Close()
	supplier := NewKeySupplier(s, &modHash{numSegments: 2})

	keys := [][]byte{[]byte("k-2"), []byte("k-3"), []byte("missing")}
	it, err := supplier.BuildIterator(context.Background(), nil, keys, nil)
	require.NoError(t, err)
	defer it.Close()

	var produced []string
	for _, entry := range drain(t, it) {
		produced = append(produced, string(entry.Key))
	}
	require.ElementsMatch(t, []string{"k-2", "k-3"}, produced)
}

func TestEntrySupplier_SegmentCompletion(t *testing.T) {
	s := seededStore(t, 12)
	defer s.Close()
	supplier := NewEntrySupplier(s, &modHash{numSegments: 3}, true)

	var completed []int
	it, err := supplier.BuildIterator(context.Background(), nil, nil, func(segment int) {
		completed = append(completed, segment)
	})
	require.NoError(t, err)
	defer it.Close()

	entries := drain(t, it)
	require.Len(t, entries, 12)
	for _, entry := range entries {
		require.NotNil(t, entry.Value)
	}
	// each segment completes exactly once, in ascending drain order
	require.Equal(t, []int{0, 1, 2}, completed)
}

func TestEntrySupplier_NoHash(t *testing.T) {
	s := seededStore(t, 5)
	defer s.Close()
	supplier := NewEntrySupplier(s, nil, false)

	it, err := supplier.BuildIterator(context.Background(), nil, nil, func(segment int) {
		t.Fatalf("no completion expected without a hash function, got segment %d", segment)
	})
	require.NoError(t, err)
	defer it.Close()

	require.Len(t, drain(t, it), 5)
}

func TestRemovableIterator(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t, 4)
	defer s.Close()
	supplier := NewKeySupplier(s, &modHash{numSegments: 2})

	base, err := supplier.BuildIterator(ctx, nil, nil, nil)
	require.NoError(t, err)
	it := supplier.RemovableIterator(base)
	defer it.Close()

	remover, ok := it.(Remover)
	require.True(t, ok)
	require.Error(t, remover.Remove(ctx)) // nothing returned yet

	entry, err := it.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NoError(t, remover.Remove(ctx))

	present, err := s.Contains(ctx, entry.Key)
	require.NoError(t, err)
	require.False(t, present)
}

func TestIntermediateSupplier(t *testing.T) {
	entries := []*proto.Entry{
		{Key: []byte("a")}, {Key: []byte("b")},
	}
	base := NewSliceIterator(entries)
	supplier := NewIntermediateSupplier(base)

	// filters are assumed pushed upstream: the wrapped sequence comes
	// back untouched
	it, err := supplier.BuildIterator(context.Background(), sets.From(2, 0), nil, nil)
	require.NoError(t, err)
	require.Equal(t, Iterator(base), it)
	require.Equal(t, it, supplier.RemovableIterator(it))

	require.Len(t, drain(t, it), 2)
}
