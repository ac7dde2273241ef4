package sinks

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/pipeline-reporter/internal/progress"
	"github.com/JakeFAU/pipeline-reporter/internal/textfmt"
)

// PrometheusSink exports pipeline progress metrics via Prometheus. It owns all
// collectors for jobs started/completed/running and per-destination counters.
// The running gauge and runtime histogram follow jobs by Event.RunID; job
// events without a RunID only feed the started/completed counters.
type PrometheusSink struct {
	jobsStarted   prometheus.Counter
	jobsCompleted *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	jobRuntime    *prometheus.HistogramVec

	streams           prometheus.Counter
	rowsReceived      prometheus.Counter
	bytesReceived     prometheus.Counter
	destinationEvents *prometheus.CounterVec
	bytesLoaded       *prometheus.CounterVec

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_jobs_started_total",
			Help: "Total jobs that have started.",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_jobs_completed_total",
			Help: "Total jobs completed partitioned by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_jobs_running",
			Help: "Current number of running jobs.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_job_runtime_seconds",
			Help:    "Wall time per completed job.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 1200},
		}, []string{"result"}),
		streams: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_streams_total",
			Help: "Streams started across all jobs.",
		}),
		rowsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_rows_received_total",
			Help: "Rows received from processors.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_bytes_received_total",
			Help: "Serialized size of received rows.",
		}),
		destinationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_destination_events_total",
			Help: "Destination events partitioned by destination index and stage.",
		}, []string{"destination", "stage"}),
		bytesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_destination_bytes_loaded_total",
			Help: "Serialized size of loaded batches per destination.",
		}, []string{"destination"}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsCompleted,
		s.jobsRunning,
		s.jobRuntime,
		s.streams,
		s.rowsReceived,
		s.bytesReceived,
		s.destinationEvents,
		s.bytesLoaded,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Handle implements progress.Handler. It is safe for concurrent use.
func (s *PrometheusSink) Handle(evt progress.Event) {
	switch {
	case evt.Stage == progress.StageJobStart, evt.Stage == progress.StageJobDone, evt.Stage == progress.StageJobError:
		s.handleJobEvent(evt)
	case evt.Stage == progress.StageStreamStart:
		s.streams.Inc()
	case evt.Stage == progress.StageRowReceived:
		s.rowsReceived.Inc()
		s.bytesReceived.Add(float64(textfmt.Size(evt.Payload)))
	case evt.Stage.IsDestination():
		s.handleDestinationEvent(evt)
	}
}

func (s *PrometheusSink) handleJobEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobStart:
		s.jobsStarted.Inc()
		if s.tracker.start(evt.RunID, evt.TS) {
			s.jobsRunning.Inc()
		}
		return
	case progress.StageJobDone:
		s.jobsCompleted.WithLabelValues("success").Inc()
		s.finish(evt, "success")
	case progress.StageJobError:
		s.jobsCompleted.WithLabelValues("error").Inc()
		s.finish(evt, "error")
	}
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	started, ok := s.tracker.complete(evt.RunID)
	if !ok {
		return
	}
	s.jobsRunning.Dec()
	if d := evt.TS.Sub(started); d >= 0 {
		s.jobRuntime.WithLabelValues(result).Observe(d.Seconds())
	}
}

func (s *PrometheusSink) handleDestinationEvent(evt progress.Event) {
	dest := strconv.Itoa(evt.Destination)
	s.destinationEvents.WithLabelValues(dest, string(evt.Stage)).Inc()
	if evt.Stage == progress.StageBatchLoaded {
		s.bytesLoaded.WithLabelValues(dest).Add(float64(textfmt.Size(evt.Payload)))
	}
}

// jobTracker remembers when each running job started, keyed by run id. Empty
// ids are never tracked.
type jobTracker struct {
	mu      sync.Mutex
	running map[string]time.Time
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[string]time.Time)}
}

func (t *jobTracker) start(id string, at time.Time) bool {
	if id == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = at
	return true
}

func (t *jobTracker) complete(id string) (time.Time, bool) {
	if id == "" {
		return time.Time{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.running[id]
	if !ok {
		return time.Time{}, false
	}
	delete(t.running, id)
	return at, true
}
