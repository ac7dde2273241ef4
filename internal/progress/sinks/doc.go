// Package sinks implements diagnostic progress consumers: structured logging
// and Prometheus metrics. Each sink is a progress.Handler and can be
// subscribed to any progress.Feed next to a reporter.
package sinks
