package progress

// Handler consumes events synchronously. Implementations must return quickly,
// must not block the emitter, and may be invoked from several goroutines.
type Handler interface {
	Handle(evt Event)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(evt Event)

// Handle calls f(evt).
func (f HandlerFunc) Handle(evt Event) {
	f(evt)
}

// Emitter publishes individual events; Bus satisfies this interface so a job
// engine can remain agnostic about who is listening.
type Emitter interface {
	Emit(evt Event)
}

// Feed is the subscription side of an event stream. The returned function
// removes the handler again and is safe to call more than once.
type Feed interface {
	Subscribe(h Handler) (unsubscribe func())
}
