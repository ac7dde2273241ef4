package main

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/JakeFAU/pipeline-reporter/internal/config"
	"github.com/JakeFAU/pipeline-reporter/internal/job"
)

var demoTables = []string{"orders", "customers", "invoices", "shipments"}

type demoRow struct {
	Table string `json:"table"`
	Seq   int    `json:"seq"`
	Total int    `json:"total"`
}

// newDemoProcessor yields cfg.Streams streams of synthetic rows, pausing
// delay between rows so the periodic snapshot has something to report.
func newDemoProcessor(cfg config.DemoConfig, delay time.Duration) job.Processor {
	return job.ProcessorFunc(func(ctx context.Context) iter.Seq2[job.Stream, error] {
		return func(yield func(job.Stream, error) bool) {
			for s := range cfg.Streams {
				table := demoTables[s%len(demoTables)]
				stream := job.Stream{
					Info: []any{table, s},
					Rows: paced(ctx, delay, cfg.RowsPerStream, func(i int) any {
						return demoRow{Table: table, Seq: i, Total: (i + 1) * 100}
					}),
				}
				if !yield(stream, nil) {
					return
				}
			}
		}
	})
}

func paced(ctx context.Context, delay time.Duration, n int, row func(int) any) iter.Seq[any] {
	return func(yield func(any) bool) {
		for i := range n {
			if i > 0 && delay > 0 {
				t := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			if !yield(row(i)) {
				return
			}
		}
	}
}

// newDemoDestinations builds cfg.Destinations destinations. Odd indexes
// expand each row into an audit row; all of them fail when FailLoads is set.
func newDemoDestinations(cfg config.DemoConfig) []job.Destination {
	dests := make([]job.Destination, 0, cfg.Destinations)
	for i := range cfg.Destinations {
		var base job.Destination = job.DummyDestination{Size: cfg.BatchSize}
		if cfg.FailLoads {
			base = job.FaultyDestination{Size: cfg.BatchSize}
		}
		if i%2 == 1 {
			base = auditDestination{Destination: base, size: cfg.BatchSize}
		}
		dests = append(dests, base)
	}
	return dests
}

type auditDestination struct {
	job.Destination
	size int
}

func (d auditDestination) BatchSize() int { return d.size }

func (auditDestination) GenerateRows(_ context.Context, row any) ([]any, error) {
	r, ok := row.(demoRow)
	if !ok {
		return nil, fmt.Errorf("unexpected row type %T", row)
	}
	if r.Seq%13 == 12 {
		return nil, fmt.Errorf("row %d of %s has no audit key", r.Seq, r.Table)
	}
	return []any{r, map[string]any{"audit": r.Table, "seq": r.Seq}}, nil
}
