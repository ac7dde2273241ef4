package progress

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls diagnostics for the Bus.
//   - Logger: optional structured logger used for dropped events and handler faults.
//   - Clock: optional time source used to stamp events emitted without a TS.
type Config struct {
	Logger *zap.Logger
	Clock  func() time.Time
}

const panicLogInterval = 5 * time.Second

// Bus delivers every emitted Event to all subscribed handlers, synchronously
// and in subscription order. It is safe for concurrent use by multiple
// goroutines and never surfaces handler faults to the emitter.
type Bus struct {
	logger       *zap.Logger
	now          func() time.Time
	panicLimiter rateLimiter
	panics       atomic.Int64
	closed       atomic.Bool

	mu       sync.RWMutex
	nextID   uint64
	handlers []subscription
}

type subscription struct {
	id      uint64
	handler Handler
}

// NewBus initializes an empty Bus.
func NewBus(cfg Config) *Bus {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Bus{
		logger:       logger,
		now:          now,
		panicLimiter: rateLimiter{interval: panicLogInterval},
	}
}

// Subscribe registers h for all subsequent events.
func (b *Bus) Subscribe(h Handler) func() {
	if b == nil || h == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.handlers {
		if sub.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Emit delivers evt to every subscriber before returning. Events without a
// timestamp are stamped with the bus clock; invalid events are discarded.
func (b *Bus) Emit(evt Event) {
	if b == nil {
		return
	}
	if b.closed.Load() {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = b.now()
	}
	if err := evt.Validate(); err != nil {
		b.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	b.mu.RLock()
	handlers := append([]subscription(nil), b.handlers...)
	b.mu.RUnlock()
	for _, sub := range handlers {
		b.deliver(sub.handler, evt)
	}
}

func (b *Bus) deliver(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			if b.panicLimiter.Allow(time.Now()) {
				count := b.panics.Swap(0)
				b.logger.Warn("progress handler panicked",
					zap.String("stage", string(evt.Stage)),
					zap.String("panic", fmt.Sprint(r)),
					zap.Int64("panics", count),
				)
			}
		}
	}()
	h.Handle(evt)
}

// Close stops delivery. Subsequent Emit calls are ignored. It is safe to call
// multiple times.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.closed.Store(true)
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
