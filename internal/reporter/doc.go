// Package reporter renders a live, hierarchical progress report for a job by
// observing its progress.Feed. Each attached job gets its own counters keyed
// by stream and destination, a periodic snapshot timer per open stream, and
// immediate entries for failures. The reporter never feeds anything back into
// the job: handlers return nothing, swallow their own faults and only block
// for as long as it takes to write one entry.
package reporter
