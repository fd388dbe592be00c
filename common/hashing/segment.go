package hashing

import (
	"math"

	"github.com/gridkv/gridkv/common/sets"
)

// SegmentHash is the segment-table consistent-hash shape: an explicit
// owner list per segment index. All queries are constant time.
type SegmentHash struct {
	owners      [][]string
	numSegments int
	segmentSize uint32
}

func newSegmentHash() *SegmentHash {
	return &SegmentHash{}
}

// Init installs the pushed per-segment owner table.
func (s *SegmentHash) Init(segmentOwners [][]string, numSegments int) {
	if numSegments < 1 {
		numSegments = 1
	}
	s.owners = segmentOwners
	s.numSegments = numSegments
	s.segmentSize = uint32(math.Ceil(float64(uint32(1)<<31) / float64(numSegments)))
}

// GetSegment splits the non-negative 31-bit hash range into numSegments
// equal-width slots.
func (s *SegmentHash) GetSegment(key []byte) int {
	return int((hashV2(key) & math.MaxInt32) / s.segmentSize)
}

func (s *SegmentHash) GetServer(key []byte) string {
	owners := s.GetOwners(s.GetSegment(key))
	if len(owners) == 0 {
		return ""
	}
	return owners[0]
}

func (s *SegmentHash) GetOwners(segment int) []string {
	if segment < 0 || segment >= len(s.owners) {
		return nil
	}
	return append([]string(nil), s.owners[segment]...)
}

func (s *SegmentHash) GetSegmentsByServer() map[string]*sets.SegmentSet {
	byServer := make(map[string]*sets.SegmentSet)
	for segment, owners := range s.owners {
		for _, server := range owners {
			set, ok := byServer[server]
			if !ok {
				set = sets.New(s.numSegments)
				byServer[server] = set
			}
			set.Set(segment)
		}
	}
	return byServer
}

func (s *SegmentHash) NumSegments() int { return s.numSegments }
