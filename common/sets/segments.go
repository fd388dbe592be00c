package sets

import (
	"fmt"
	"strings"
)

const wordBits = 64

// SegmentSet is a fixed-capacity bit set of segment ids. The zero value
// is unusable; construct through New or From. Not safe for concurrent
// mutation.
type SegmentSet struct {
	words []uint64
	cap   int
}

func New(numSegments int) *SegmentSet {
	if numSegments < 0 {
		numSegments = 0
	}
	return &SegmentSet{
		words: make([]uint64, (numSegments+wordBits-1)/wordBits),
		cap:   numSegments,
	}
}

func From(numSegments int, ids ...int) *SegmentSet {
	s := New(numSegments)
	for _, id := range ids {
		s.Set(id)
	}
	return s
}

// Full returns the set holding every segment in [0, numSegments).
func Full(numSegments int) *SegmentSet {
	s := New(numSegments)
	for i := 0; i < numSegments; i++ {
		s.Set(i)
	}
	return s
}

func (s *SegmentSet) Cap() int { return s.cap }

func (s *SegmentSet) Set(id int) {
	if id < 0 || id >= s.cap {
		return
	}
	s.words[id/wordBits] |= 1 << uint(id%wordBits)
}

func (s *SegmentSet) Contains(id int) bool {
	if id < 0 || id >= s.cap {
		return false
	}
	return s.words[id/wordBits]&(1<<uint(id%wordBits)) != 0
}

func (s *SegmentSet) Len() (n int) {
	for _, w := range s.words {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return
}

func (s *SegmentSet) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

func (s *SegmentSet) Clone() *SegmentSet {
	cloned := &SegmentSet{
		words: make([]uint64, len(s.words)),
		cap:   s.cap,
	}
	copy(cloned.words, s.words)
	return cloned
}

// Union folds other into s.
func (s *SegmentSet) Union(other *SegmentSet) {
	if other == nil {
		return
	}
	for i := range other.words {
		if i >= len(s.words) {
			break
		}
		s.words[i] |= other.words[i]
	}
}

// Diff returns s \ other as a new set.
func (s *SegmentSet) Diff(other *SegmentSet) *SegmentSet {
	d := s.Clone()
	if other == nil {
		return d
	}
	for i := range d.words {
		if i < len(other.words) {
			d.words[i] &^= other.words[i]
		}
	}
	return d
}

// Intersect returns s ∩ other as a new set.
func (s *SegmentSet) Intersect(other *SegmentSet) *SegmentSet {
	d := s.Clone()
	if other == nil {
		return d
	}
	for i := range d.words {
		if i < len(other.words) {
			d.words[i] &= other.words[i]
		} else {
			d.words[i] = 0
		}
	}
	return d
}

// Slice lists the contained segment ids in ascending order.
func (s *SegmentSet) Slice() []int {
	ids := make([]int, 0, s.Len())
	for id := 0; id < s.cap; id++ {
		if s.Contains(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Bytes is the compact wire form: the raw little-endian bit words.
func (s *SegmentSet) Bytes() []byte {
	b := make([]byte, len(s.words)*8)
	for i, w := range s.words {
		for j := 0; j < 8; j++ {
			b[i*8+j] = byte(w >> uint(8*j))
		}
	}
	return b
}

func FromBytes(numSegments int, b []byte) *SegmentSet {
	s := New(numSegments)
	for i := range s.words {
		var w uint64
		for j := 0; j < 8 && i*8+j < len(b); j++ {
			w |= uint64(b[i*8+j]) << uint(8*j)
		}
		s.words[i] = w
	}
	return s
}

func (s *SegmentSet) String() string {
	ids := s.Slice()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
