package job

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pipeline-reporter/internal/id/uuid"
	"github.com/JakeFAU/pipeline-reporter/internal/progress"
)

const defaultRetryInterval = 100 * time.Millisecond

// IDGenerator produces run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Config tunes a Job.
//   - LoadRetries: extra attempts per batch load before it is reported failed (default 0).
//   - RetryInterval: initial backoff between load attempts (default 100ms).
//   - IDs: run id source (default UUIDv7).
//   - Clock: event timestamp source (default time.Now in UTC).
//   - Logger: optional structured logger.
type Config struct {
	LoadRetries   int
	RetryInterval time.Duration
	IDs           IDGenerator
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Job runs a processor's streams through its destinations.
type Job struct {
	processor    Processor
	destinations []Destination
	emitter      progress.Emitter
	cfg          Config
	runID        string
	logger       *zap.Logger
}

// New validates its inputs and assigns the job a run id.
func New(p Processor, destinations []Destination, emitter progress.Emitter, cfg Config) (*Job, error) {
	if p == nil {
		return nil, fmt.Errorf("job: processor is required")
	}
	if len(destinations) == 0 {
		return nil, ErrNoDestinations
	}
	if cfg.LoadRetries < 0 {
		cfg.LoadRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.IDs == nil {
		cfg.IDs = uuid.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := cfg.IDs.NewID()
	if err != nil {
		return nil, fmt.Errorf("job: assign run id: %w", err)
	}
	return &Job{
		processor:    p,
		destinations: append([]Destination(nil), destinations...),
		emitter:      emitter,
		cfg:          cfg,
		runID:        runID,
		logger:       logger.With(zap.String("run_id", runID)),
	}, nil
}

// RunID identifies this job in events and logs.
func (j *Job) RunID() string {
	return j.runID
}

// Run processes every stream and reports the outcome as StageJobDone or
// StageJobError. Destination failures are reported but do not fail the job;
// processor errors and context cancellation do.
func (j *Job) Run(ctx context.Context) (err error) {
	j.emit(progress.Event{Stage: progress.StageJobStart})
	j.logger.Info("job started", zap.Int("destinations", len(j.destinations)))
	defer func() {
		if err != nil {
			j.logger.Warn("job failed", zap.Error(err))
			j.emit(progress.Event{Stage: progress.StageJobError, Err: err})
			return
		}
		j.logger.Info("job completed")
		j.emit(progress.Event{Stage: progress.StageJobDone})
	}()

	for stream, streamErr := range j.processor.Streams(ctx) {
		if streamErr != nil {
			return fmt.Errorf("read stream: %w", streamErr)
		}
		if err := j.runStream(ctx, stream); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) runStream(ctx context.Context, stream Stream) error {
	j.emit(progress.Event{Stage: progress.StageStreamStart, Info: stream.Info})
	pending := make([][]any, len(j.destinations))

	if stream.Rows != nil {
		for row := range stream.Rows {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("process stream: %w", err)
			}
			j.emit(progress.Event{Stage: progress.StageRowReceived, Payload: row})
			for i, d := range j.destinations {
				rows, ok := j.generate(ctx, i, d, row)
				if !ok {
					continue
				}
				pending[i] = append(pending[i], rows...)
				size := batchSize(d)
				for size > 0 && len(pending[i]) >= size {
					batch := pending[i][:size:size]
					pending[i] = pending[i][size:]
					if err := j.flush(ctx, i, d, batch); err != nil {
						return fmt.Errorf("flush batch: %w", err)
					}
				}
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range j.destinations {
		if len(pending[i]) == 0 {
			continue
		}
		batch := pending[i]
		g.Go(func() error {
			return j.flush(gctx, i, d, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("flush stream: %w", err)
	}
	j.emit(progress.Event{Stage: progress.StageStreamEnd})
	return nil
}

func batchSize(d Destination) int {
	if s, ok := d.(BatchSizer); ok {
		return s.BatchSize()
	}
	return 0
}

func (j *Job) generate(ctx context.Context, idx int, d Destination, row any) ([]any, bool) {
	gen, ok := d.(RowGenerator)
	if !ok {
		return []any{row}, true
	}
	rows, err := gen.GenerateRows(ctx, row)
	if err != nil {
		j.emit(progress.Event{Stage: progress.StageRowGenerationFailed, Destination: idx, Payload: row, Err: err})
		return nil, false
	}
	for _, r := range rows {
		j.emit(progress.Event{Stage: progress.StageRowGenerated, Destination: idx, Payload: r})
	}
	return rows, true
}

// flush transforms and loads one batch. It only returns an error when ctx is
// done; destination failures are reported as events.
func (j *Job) flush(ctx context.Context, idx int, d Destination, rows []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var batch any = rows
	if tr, ok := d.(BatchTransformer); ok {
		out, err := tr.TransformBatch(ctx, rows)
		if err != nil {
			j.emit(progress.Event{Stage: progress.StageBatchTransformFailed, Destination: idx, Payload: rows, Err: err})
			return nil
		}
		j.emit(progress.Event{Stage: progress.StageBatchTransformed, Destination: idx, Payload: out})
		batch = out
	}
	if err := j.load(ctx, idx, d, batch); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		j.emit(progress.Event{Stage: progress.StageBatchLoadFailed, Destination: idx, Payload: batch, Err: err})
		return nil
	}
	j.emit(progress.Event{Stage: progress.StageBatchLoaded, Destination: idx, Payload: batch})
	return nil
}

func (j *Job) load(ctx context.Context, idx int, d Destination, batch any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = j.cfg.RetryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(j.cfg.LoadRetries)), ctx)

	return backoff.RetryNotify(func() error {
		return d.LoadBatch(ctx, batch)
	}, policy, func(err error, wait time.Duration) {
		j.logger.Warn("retrying batch load",
			zap.Int("destination", idx),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

func (j *Job) emit(evt progress.Event) {
	if j.emitter == nil {
		return
	}
	evt.RunID = j.runID
	if evt.TS.IsZero() {
		evt.TS = j.cfg.Clock()
	}
	j.emitter.Emit(evt)
}
