package job

import (
	"context"
	"errors"
	"iter"
	"slices"
)

// Stream is one pass of rows plus the descriptive values announced with it.
type Stream struct {
	Info []any
	Rows iter.Seq[any]
}

// Rows is a convenience constructor for a fixed row sequence.
func Rows(values ...any) iter.Seq[any] {
	return slices.Values(values)
}

// Processor yields the streams of a job. Yielding a non-nil error fails the
// job.
type Processor interface {
	Streams(ctx context.Context) iter.Seq2[Stream, error]
}

// Destination loads batches of rows.
type Destination interface {
	LoadBatch(ctx context.Context, batch any) error
}

// RowGenerator optionally expands each incoming row into zero or more rows
// for its destination.
type RowGenerator interface {
	GenerateRows(ctx context.Context, row any) ([]any, error)
}

// BatchTransformer optionally reshapes a batch before it is loaded.
type BatchTransformer interface {
	TransformBatch(ctx context.Context, rows []any) (any, error)
}

// BatchSizer optionally caps the number of rows per batch. A non-positive
// size buffers the whole stream into a single batch.
type BatchSizer interface {
	BatchSize() int
}

// ErrNoDestinations is returned by New when no destination is supplied.
var ErrNoDestinations = errors.New("job: at least one destination is required")

// StaticProcessor yields fixed streams.
type StaticProcessor []Stream

// Streams implements Processor.
func (p StaticProcessor) Streams(ctx context.Context) iter.Seq2[Stream, error] {
	return func(yield func(Stream, error) bool) {
		for _, s := range p {
			if err := ctx.Err(); err != nil {
				yield(Stream{}, err)
				return
			}
			if !yield(s, nil) {
				return
			}
		}
	}
}

// FailingProcessor fails before producing any stream.
type FailingProcessor struct {
	Err error
}

// Streams implements Processor.
func (p FailingProcessor) Streams(context.Context) iter.Seq2[Stream, error] {
	return func(yield func(Stream, error) bool) {
		yield(Stream{}, p.Err)
	}
}

// ProcessorFunc adapts an iterator constructor to Processor.
type ProcessorFunc func(ctx context.Context) iter.Seq2[Stream, error]

// Streams implements Processor.
func (f ProcessorFunc) Streams(ctx context.Context) iter.Seq2[Stream, error] {
	return f(ctx)
}

// DummyDestination accepts every batch and does nothing with it.
type DummyDestination struct {
	Size int
}

// LoadBatch implements Destination.
func (DummyDestination) LoadBatch(context.Context, any) error { return nil }

// BatchSize implements BatchSizer.
func (d DummyDestination) BatchSize() int { return d.Size }

// ErrFaulty is the error returned by FaultyDestination.
var ErrFaulty = errors.New("Oh, snap!") //nolint:staticcheck // user-facing text

// FaultyDestination rejects every batch.
type FaultyDestination struct {
	Size int
}

// LoadBatch implements Destination.
func (FaultyDestination) LoadBatch(context.Context, any) error { return ErrFaulty }

// BatchSize implements BatchSizer.
func (d FaultyDestination) BatchSize() int { return d.Size }

// DestinationFunc adapts a load function to Destination.
type DestinationFunc func(ctx context.Context, batch any) error

// LoadBatch implements Destination.
func (f DestinationFunc) LoadBatch(ctx context.Context, batch any) error {
	return f(ctx, batch)
}
