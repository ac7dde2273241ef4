package reporter

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pipeline-reporter/internal/clock"
	"github.com/JakeFAU/pipeline-reporter/internal/clock/system"
	"github.com/JakeFAU/pipeline-reporter/internal/logtree"
	"github.com/JakeFAU/pipeline-reporter/internal/progress"
	"github.com/JakeFAU/pipeline-reporter/internal/textfmt"
)

// Option customizes a Reporter.
type Option func(*Reporter)

// WithOutput sets the sink the report is written to (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(r *Reporter) {
		if w != nil {
			r.out = w
		}
	}
}

// WithClock sets the time source for timestamps, durations and timers.
func WithClock(c clock.Clock) Option {
	return func(r *Reporter) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithSequence injects the job id sequence (default DefaultSequence).
func WithSequence(s *Sequence) Option {
	return func(r *Reporter) {
		if s != nil {
			r.seq = s
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reporter attaches progress reports to jobs.
type Reporter struct {
	cfg      Config
	out      io.Writer
	clock    clock.Clock
	seq      *Sequence
	logger   *zap.Logger
	renderer *logtree.Renderer
}

// New builds a Reporter. The configuration is normalized; it never fails.
func New(cfg Config, opts ...Option) *Reporter {
	r := &Reporter{
		cfg:    cfg.normalized(),
		out:    os.Stdout,
		clock:  system.New(),
		seq:    DefaultSequence,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.renderer = logtree.NewRenderer(r.out,
		logtree.WithClock(r.clock.Now),
		logtree.WithColor(r.cfg.Color),
	)
	return r
}

// Config returns the effective configuration.
func (r *Reporter) Config() Config {
	return r.cfg
}

// Attach binds a new JobReport to feed. The report takes the next job id and
// starts listening immediately.
func (r *Reporter) Attach(feed progress.Feed) *JobReport {
	id := r.seq.Next()
	j := &JobReport{
		id:        id,
		cfg:       r.cfg,
		clock:     r.clock,
		renderer:  r.renderer,
		logger:    r.logger.With(zap.Int64("job_id", id)),
		startedAt: r.clock.Now(),
	}
	if feed != nil {
		j.unsubscribe = feed.Subscribe(j)
	}
	return j
}

// JobReport holds the counters of one job and renders its report. All state
// is guarded by mu; timer goroutines and event handlers take it before
// touching counters or rendering, which keeps entries in delivery order.
type JobReport struct {
	id          int64
	cfg         Config
	clock       clock.Clock
	renderer    *logtree.Renderer
	logger      *zap.Logger
	unsubscribe func()
	watchers    sync.WaitGroup

	mu           sync.Mutex
	startedAt    time.Time
	stream       *streamState
	nextStreamID int
}

// ID is the job id assigned at attach time.
func (j *JobReport) ID() int64 {
	return j.id
}

// Snapshot copies the current stream slot. ok is false before the first
// stream starts.
func (j *JobReport) Snapshot() (snap StreamSnapshot, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stream == nil {
		return StreamSnapshot{}, false
	}
	return j.stream.snapshot(), true
}

// Detach stops listening and cancels any live snapshot timer. It returns
// once the timer goroutine has exited, so nothing renders afterwards.
func (j *JobReport) Detach() {
	if j.unsubscribe != nil {
		j.unsubscribe()
	}
	j.mu.Lock()
	j.cancelOpenStream()
	j.mu.Unlock()
	j.watchers.Wait()
}

// Handle implements progress.Handler.
func (j *JobReport) Handle(evt progress.Event) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Warn("progress report fault", zap.String("stage", string(evt.Stage)), zap.Any("panic", r))
		}
	}()
	j.mu.Lock()
	defer j.mu.Unlock()
	j.dispatch(evt)
}

// dispatch applies evt to the report. Callers hold j.mu.
func (j *JobReport) dispatch(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobStart:
		j.startedAt = j.clock.Now()
		j.render(logtree.Entry{
			Header: fmt.Sprintf("Job #%d started.", j.id),
			Status: logtree.StatusSuccess,
		})
	case progress.StageJobDone:
		j.cancelOpenStream()
		j.render(logtree.Entry{
			Header: fmt.Sprintf("Job #%d completed.", j.id),
			Status: logtree.StatusSuccess,
			Fields: []logtree.Field{{Label: "Job duration", Value: textfmt.Duration(j.elapsed())}},
		})
	case progress.StageJobError:
		j.cancelOpenStream()
		j.render(logtree.Entry{
			Header: fmt.Sprintf("Job #%d failed.", j.id),
			Status: logtree.StatusFail,
			Fields: []logtree.Field{
				{Label: "Job duration", Value: textfmt.Duration(j.elapsed())},
				{Label: "Error", Value: textfmt.ErrorText(evt.Err)},
			},
		})
	case progress.StageStreamStart:
		j.startStream(evt.Info)
	case progress.StageStreamEnd:
		j.endStream()
	case progress.StageRowReceived:
		if s := j.openStream(evt); s != nil {
			s.receivedRows++
			s.bytesReceived += textfmt.Size(evt.Payload)
		}
	case progress.StageRowGenerated:
		if s := j.openStream(evt); s != nil {
			s.destination(evt.Destination).RowsGenerated++
		}
	case progress.StageRowGenerationFailed:
		if s := j.openStream(evt); s != nil {
			s.destination(evt.Destination).RowGenerationFails++
		}
		j.renderFailure(evt, "Row generation", "Source row")
	case progress.StageBatchTransformed:
		if s := j.openStream(evt); s != nil {
			s.destination(evt.Destination).BatchesTransformed++
		}
	case progress.StageBatchTransformFailed:
		if s := j.openStream(evt); s != nil {
			s.destination(evt.Destination).BatchTransformFails++
		}
		j.renderFailure(evt, "Batch transform", "Source data")
	case progress.StageBatchLoaded:
		if s := j.openStream(evt); s != nil {
			d := s.destination(evt.Destination)
			d.BatchesLoaded++
			d.BytesLoaded += textfmt.Size(evt.Payload)
		}
	case progress.StageBatchLoadFailed:
		if s := j.openStream(evt); s != nil {
			s.destination(evt.Destination).BatchLoadFails++
		}
		j.renderFailure(evt, "Batch load", "Source data")
	default:
		j.logger.Debug("ignoring unknown progress stage", zap.String("stage", string(evt.Stage)))
	}
}

func (j *JobReport) elapsed() time.Duration {
	return j.clock.Now().Sub(j.startedAt)
}

// openStream returns the stream counters should be applied to, or nil when
// no stream is open.
func (j *JobReport) openStream(evt progress.Event) *streamState {
	if j.stream == nil || j.stream.finished {
		j.logger.Debug("progress event outside an open stream", zap.String("stage", string(evt.Stage)))
		return nil
	}
	return j.stream
}

func (j *JobReport) startStream(info []any) {
	if prev := j.stream; prev != nil && !prev.finished {
		j.logger.Debug("stream started before previous stream ended", zap.Int("stream_id", prev.id))
		j.stopTimer(prev)
	}
	s := newStreamState(j.nextStreamID, info, j.clock.Now())
	j.nextStreamID++
	j.stream = s

	s.ticker = j.clock.NewTicker(j.cfg.Interval)
	s.done = make(chan struct{})
	j.watchers.Add(1)
	go j.watch(s, s.ticker, s.done)
}

func (j *JobReport) endStream() {
	s := j.stream
	if s == nil || s.finished {
		j.logger.Debug("stream end without an open stream")
		return
	}
	j.stopTimer(s)
	s.finished = true
	j.render(BuildSnapshot(j.id, s.snapshot()))
}

// cancelOpenStream silences the timer of a stream the job never ended.
func (j *JobReport) cancelOpenStream() {
	if s := j.stream; s != nil && !s.finished {
		j.stopTimer(s)
	}
}

func (j *JobReport) stopTimer(s *streamState) {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.done)
	s.ticker = nil
}

func (j *JobReport) watch(s *streamState, t clock.Ticker, done <-chan struct{}) {
	defer j.watchers.Done()
	for {
		select {
		case <-done:
			return
		case <-t.C():
			j.tick(s)
		}
	}
}

func (j *JobReport) tick(s *streamState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	// The slot may have ended, been replaced or had its timer cancelled while
	// this tick was waiting for the lock.
	if j.stream != s || s.finished || s.ticker == nil {
		return
	}
	if elapsed := j.clock.Now().Sub(s.startedAt).Seconds(); elapsed > 0 {
		s.speed = float64(s.receivedRows) / elapsed
	}
	j.render(BuildSnapshot(j.id, s.snapshot()))
}

func (j *JobReport) renderFailure(evt progress.Event, what, payloadLabel string) {
	header := fmt.Sprintf("Job #%d. ", j.id)
	switch {
	case j.stream == nil:
	case j.stream.finished:
		// Between streams the id has already advanced to the next stream.
		header += fmt.Sprintf("Stream #%d. ", j.nextStreamID)
	default:
		header += fmt.Sprintf("Stream #%d. ", j.stream.id)
	}
	header += fmt.Sprintf("Destination #%d. %s failed.", evt.Destination, what)
	j.render(logtree.Entry{
		Header: header,
		Status: logtree.StatusFail,
		Fields: []logtree.Field{
			{Label: payloadLabel, Value: textfmt.Summarize(evt.Payload, j.cfg.TruncateLimit)},
			{Label: "Error", Value: textfmt.ErrorText(evt.Err)},
		},
	})
}

func (j *JobReport) render(e logtree.Entry) {
	if err := j.renderer.Render(e); err != nil {
		j.logger.Debug("render progress entry", zap.Error(err))
	}
}
