package iteration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_DeltaThenCumulative(t *testing.T) {
	tracker := NewSegmentCompletionTracker(8)

	require.True(t, tracker.Delta().IsEmpty())

	tracker.SegmentCompleted(1)
	tracker.SegmentCompleted(3)
	require.Equal(t, []int{1, 3}, tracker.Delta().Slice())
	// already reported: the next delta is empty
	require.True(t, tracker.Delta().IsEmpty())

	tracker.SegmentCompleted(5)
	require.Equal(t, []int{5}, tracker.Delta().Slice())

	// terminal reporting returns everything, reported or not
	require.Equal(t, []int{1, 3, 5}, tracker.Cumulative().Slice())
	require.Equal(t, []int{1, 3, 5}, tracker.Cumulative().Slice())
}

func TestTracker_NoSegmentTwiceInDeltas(t *testing.T) {
	tracker := NewSegmentCompletionTracker(32)

	seen := make(map[int]int)
	for segment := 0; segment < 32; segment++ {
		tracker.SegmentCompleted(segment)
		if segment%3 == 0 {
			for _, id := range tracker.Delta().Slice() {
				seen[id]++
			}
		}
	}
	for id, n := range seen {
		require.Equal(t, 1, n, "segment %d reported twice in non-terminal deltas", id)
	}

	// the union of deltas plus the terminal set covers every segment
	final := tracker.Cumulative()
	require.Equal(t, 32, final.Len())
}
