// Package progress provides the event primitives and the synchronous feed that
// a running job emits into. Reporters and diagnostic sinks subscribe to a Feed
// and observe the job purely through the events delivered to them.
package progress
