package iteration

import (
	"sync"

	"github.com/gridkv/gridkv/common/sets"
)

// SegmentCompletionTracker accumulates the segments a cursor has fully
// drained and remembers which of them were already reported to the
// caller. The stream layer marks completions and the cursor polls deltas
// on next; lock-guarded because the two run on different call paths.
type SegmentCompletionTracker struct {
	mu        sync.Mutex
	completed *sets.SegmentSet
	reported  *sets.SegmentSet
}

func NewSegmentCompletionTracker(numSegments int) *SegmentCompletionTracker {
	return &SegmentCompletionTracker{
		completed: sets.New(numSegments),
		reported:  sets.New(numSegments),
	}
}

// SegmentCompleted records one fully-drained segment.
func (t *SegmentCompletionTracker) SegmentCompleted(segment int) {
	t.mu.Lock()
	t.completed.Set(segment)
	t.mu.Unlock()
}

// Delta returns the completions not yet reported and marks them
// reported. Used by non-terminal next calls.
func (t *SegmentCompletionTracker) Delta() *sets.SegmentSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	delta := t.completed.Diff(t.reported)
	t.reported = t.completed.Clone()
	return delta
}

// Cumulative returns every completion so far, regardless of what was
// reported before. A terminal next call returns this full set so the
// caller can finalize bookkeeping even after a lost delta.
func (t *SegmentCompletionTracker) Cumulative() *sets.SegmentSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reported = t.completed.Clone()
	return t.completed.Clone()
}
