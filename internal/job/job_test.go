package job

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pipeline-reporter/internal/progress"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

func (r *recorder) only(stage progress.Stage) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, evt := range r.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

type fixedID string

func (f fixedID) NewID() (string, error) { return string(f), nil }

type brokenID struct{}

func (brokenID) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func testConfig() Config {
	return Config{
		IDs:           fixedID("run-1"),
		Clock:         func() time.Time { return epoch },
		RetryInterval: time.Millisecond,
	}
}

func newTestJob(t *testing.T, p Processor, dests []Destination, cfg Config) (*Job, *recorder) {
	t.Helper()
	rec := &recorder{}
	j, err := New(p, dests, rec, cfg)
	require.NoError(t, err)
	return j, rec
}

type expandingDestination struct {
	DummyDestination
	err error
}

func (d expandingDestination) GenerateRows(_ context.Context, row any) ([]any, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []any{row, fmt.Sprintf("%v-copy", row)}, nil
}

type transformingDestination struct {
	DummyDestination
	err error
}

func (d transformingDestination) TransformBatch(_ context.Context, rows []any) (any, error) {
	if d.err != nil {
		return nil, d.err
	}
	return map[string]int{"rows": len(rows)}, nil
}

func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := New(StaticProcessor{}, nil, nil, testConfig())
	require.ErrorIs(t, err, ErrNoDestinations)

	_, err = New(nil, []Destination{DummyDestination{}}, nil, testConfig())
	require.Error(t, err)

	cfg := testConfig()
	cfg.IDs = brokenID{}
	_, err = New(StaticProcessor{}, []Destination{DummyDestination{}}, nil, cfg)
	require.ErrorContains(t, err, "entropy exhausted")
}

func TestNewAssignsUUIDByDefault(t *testing.T) {
	t.Parallel()

	j, err := New(StaticProcessor{}, []Destination{DummyDestination{}}, nil, Config{})
	require.NoError(t, err)
	require.Len(t, j.RunID(), 36)
}

func TestRunSingleRow(t *testing.T) {
	t.Parallel()

	p := StaticProcessor{{Info: []any{"orders"}, Rows: Rows("test0")}}
	j, rec := newTestJob(t, p, []Destination{DummyDestination{}}, testConfig())

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, []progress.Stage{
		progress.StageJobStart,
		progress.StageStreamStart,
		progress.StageRowReceived,
		progress.StageBatchLoaded,
		progress.StageStreamEnd,
		progress.StageJobDone,
	}, rec.stages())

	for _, evt := range rec.events {
		require.Equal(t, "run-1", evt.RunID)
		require.Equal(t, epoch, evt.TS)
		require.NoError(t, evt.Validate())
	}
	require.Equal(t, []any{"orders"}, rec.only(progress.StageStreamStart)[0].Info)
	require.Equal(t, []any{"test0"}, rec.only(progress.StageBatchLoaded)[0].Payload)
}

func TestRunFaultyDestinationDoesNotFailJob(t *testing.T) {
	t.Parallel()

	p := StaticProcessor{{Rows: Rows("test0")}}
	j, rec := newTestJob(t, p, []Destination{FaultyDestination{}}, testConfig())

	require.NoError(t, j.Run(context.Background()))
	failed := rec.only(progress.StageBatchLoadFailed)
	require.Len(t, failed, 1)
	require.ErrorIs(t, failed[0].Err, ErrFaulty)
	require.Equal(t, 0, failed[0].Destination)
	require.Len(t, rec.only(progress.StageJobDone), 1)
}

func TestRunRetriesLoads(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	flaky := DestinationFunc(func(context.Context, any) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	cfg := testConfig()
	cfg.LoadRetries = 2
	j, rec := newTestJob(t, StaticProcessor{{Rows: Rows(1)}}, []Destination{flaky}, cfg)

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, int32(3), attempts.Load())
	require.Len(t, rec.only(progress.StageBatchLoaded), 1)
	require.Empty(t, rec.only(progress.StageBatchLoadFailed))
}

func TestRunReportsOnlyFinalLoadFailure(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	broken := DestinationFunc(func(context.Context, any) error {
		attempts.Add(1)
		return ErrFaulty
	})
	cfg := testConfig()
	cfg.LoadRetries = 1
	j, rec := newTestJob(t, StaticProcessor{{Rows: Rows(1)}}, []Destination{broken}, cfg)

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, int32(2), attempts.Load())
	require.Len(t, rec.only(progress.StageBatchLoadFailed), 1)
}

func TestRunBatchesBySize(t *testing.T) {
	t.Parallel()

	p := StaticProcessor{{Rows: Rows(1, 2, 3, 4, 5)}}
	j, rec := newTestJob(t, p, []Destination{DummyDestination{Size: 2}}, testConfig())

	require.NoError(t, j.Run(context.Background()))
	loaded := rec.only(progress.StageBatchLoaded)
	require.Len(t, loaded, 3)
	require.Equal(t, []any{1, 2}, loaded[0].Payload)
	require.Equal(t, []any{3, 4}, loaded[1].Payload)
	require.Equal(t, []any{5}, loaded[2].Payload)
}

func TestRunEmptyStreamLoadsNothing(t *testing.T) {
	t.Parallel()

	j, rec := newTestJob(t, StaticProcessor{{}}, []Destination{DummyDestination{}}, testConfig())

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, []progress.Stage{
		progress.StageJobStart,
		progress.StageStreamStart,
		progress.StageStreamEnd,
		progress.StageJobDone,
	}, rec.stages())
}

func TestRunRowGeneration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		dest      expandingDestination
		generated int
		failed    int
		loaded    int
	}{
		{name: "expands rows", dest: expandingDestination{}, generated: 2, loaded: 1},
		{name: "failure skips load", dest: expandingDestination{err: ErrFaulty}, failed: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			j, rec := newTestJob(t, StaticProcessor{{Rows: Rows("a")}}, []Destination{tt.dest}, testConfig())
			require.NoError(t, j.Run(context.Background()))
			require.Len(t, rec.only(progress.StageRowGenerated), tt.generated)
			require.Len(t, rec.only(progress.StageRowGenerationFailed), tt.failed)
			require.Len(t, rec.only(progress.StageBatchLoaded), tt.loaded)
		})
	}
}

func TestRunBatchTransform(t *testing.T) {
	t.Parallel()

	j, rec := newTestJob(t, StaticProcessor{{Rows: Rows("a", "b")}}, []Destination{transformingDestination{}}, testConfig())
	require.NoError(t, j.Run(context.Background()))
	transformed := rec.only(progress.StageBatchTransformed)
	require.Len(t, transformed, 1)
	require.Equal(t, map[string]int{"rows": 2}, transformed[0].Payload)
	require.Equal(t, map[string]int{"rows": 2}, rec.only(progress.StageBatchLoaded)[0].Payload)

	j, rec = newTestJob(t, StaticProcessor{{Rows: Rows("a")}},
		[]Destination{transformingDestination{err: ErrFaulty}}, testConfig())
	require.NoError(t, j.Run(context.Background()))
	failed := rec.only(progress.StageBatchTransformFailed)
	require.Len(t, failed, 1)
	require.Equal(t, []any{"a"}, failed[0].Payload)
	require.Empty(t, rec.only(progress.StageBatchLoaded))
}

func TestRunFlushesDestinationsConcurrently(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	wg.Add(2)
	// Each load waits for the other; sequential flushing would deadlock.
	rendezvous := DestinationFunc(func(ctx context.Context, _ any) error {
		wg.Done()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	j, rec := newTestJob(t, StaticProcessor{{Rows: Rows(1)}}, []Destination{rendezvous, rendezvous}, testConfig())
	require.NoError(t, j.Run(ctx))

	loaded := rec.only(progress.StageBatchLoaded)
	require.Len(t, loaded, 2)
	require.ElementsMatch(t, []int{0, 1}, []int{loaded[0].Destination, loaded[1].Destination})
}

func TestRunProcessorFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("processor exploded")
	j, rec := newTestJob(t, FailingProcessor{Err: boom}, []Destination{DummyDestination{}}, testConfig())

	err := j.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, []progress.Stage{progress.StageJobStart, progress.StageJobError}, rec.stages())
	require.ErrorIs(t, rec.only(progress.StageJobError)[0].Err, boom)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := ProcessorFunc(func(context.Context) iter.Seq2[Stream, error] {
		return func(yield func(Stream, error) bool) {
			yield(Stream{Rows: func(yield func(any) bool) {
				if !yield(1) {
					return
				}
				cancel()
				yield(2)
			}}, nil)
		}
	})
	j, rec := newTestJob(t, p, []Destination{DummyDestination{}}, testConfig())

	err := j.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, rec.only(progress.StageRowReceived), 1)
	require.Empty(t, rec.only(progress.StageStreamEnd))
	require.Len(t, rec.only(progress.StageJobError), 1)
}
