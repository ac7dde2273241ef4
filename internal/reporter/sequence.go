package reporter

import "sync/atomic"

// Sequence hands out job ids. Ids start at the value the sequence was created
// with, increase by one per call and are never reused.
type Sequence struct {
	next atomic.Int64
}

// NewSequence returns a Sequence whose first id is start.
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// Next returns the next id.
func (s *Sequence) Next() int64 {
	return s.next.Add(1) - 1
}

// DefaultSequence is the process-wide job id sequence. It starts at zero and
// is never reset.
var DefaultSequence = NewSequence(0)
