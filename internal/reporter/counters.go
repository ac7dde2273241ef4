package reporter

import (
	"time"

	"github.com/JakeFAU/pipeline-reporter/internal/clock"
)

// DestinationCounters tracks one destination within one stream.
type DestinationCounters struct {
	RowsGenerated       int64
	RowGenerationFails  int64
	BatchesTransformed  int64
	BatchTransformFails int64
	BatchesLoaded       int64
	BatchLoadFails      int64
	BytesLoaded         int64
}

// StreamSnapshot is a point-in-time copy of a stream's counters.
type StreamSnapshot struct {
	ID            int
	Info          []any
	ReceivedRows  int64
	BytesReceived int64
	Finished      bool
	Speed         float64
	Destinations  map[int]DestinationCounters
}

// streamState is the mutable slot for the current stream of a job. It is only
// touched with the owning JobReport's mutex held.
type streamState struct {
	id            int
	info          []any
	receivedRows  int64
	bytesReceived int64
	finished      bool
	speed         float64
	startedAt     time.Time
	destinations  map[int]*DestinationCounters

	ticker clock.Ticker
	done   chan struct{}
}

func newStreamState(id int, info []any, startedAt time.Time) *streamState {
	return &streamState{
		id:           id,
		info:         append([]any(nil), info...),
		startedAt:    startedAt,
		destinations: make(map[int]*DestinationCounters),
	}
}

func (s *streamState) destination(idx int) *DestinationCounters {
	d, ok := s.destinations[idx]
	if !ok {
		d = &DestinationCounters{}
		s.destinations[idx] = d
	}
	return d
}

func (s *streamState) snapshot() StreamSnapshot {
	dests := make(map[int]DestinationCounters, len(s.destinations))
	for idx, d := range s.destinations {
		dests[idx] = *d
	}
	return StreamSnapshot{
		ID:            s.id,
		Info:          append([]any(nil), s.info...),
		ReceivedRows:  s.receivedRows,
		BytesReceived: s.bytesReceived,
		Finished:      s.finished,
		Speed:         s.speed,
		Destinations:  dests,
	}
}
