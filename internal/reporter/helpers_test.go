package reporter

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JakeFAU/pipeline-reporter/internal/clock/fake"
	"github.com/JakeFAU/pipeline-reporter/internal/progress"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// syncBuffer is a bytes.Buffer safe for the timer goroutine and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	clk *fake.Clock
	out *syncBuffer
	bus *progress.Bus
	rep *Reporter
	job *JobReport
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clk: fake.New(epoch),
		out: &syncBuffer{},
	}
	h.bus = progress.NewBus(progress.Config{Clock: h.clk.Now})
	h.rep = New(cfg,
		WithOutput(h.out),
		WithClock(h.clk),
		WithSequence(NewSequence(0)),
	)
	h.job = h.rep.Attach(h.bus)
	t.Cleanup(h.job.Detach)
	return h
}

func (h *harness) emit(stage progress.Stage, mods ...func(*progress.Event)) {
	evt := progress.Event{Stage: stage}
	for _, mod := range mods {
		mod(&evt)
	}
	h.bus.Emit(evt)
}

func dest(idx int) func(*progress.Event) {
	return func(e *progress.Event) { e.Destination = idx }
}

func payload(v any) func(*progress.Event) {
	return func(e *progress.Event) { e.Payload = v }
}

func failure(err error) func(*progress.Event) {
	return func(e *progress.Event) { e.Err = err }
}

func info(values ...any) func(*progress.Event) {
	return func(e *progress.Event) { e.Info = values }
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}
