// Package job is a small reference engine that runs rows from a Processor
// through a set of Destinations and narrates every step as progress events.
// Streams run one after another; destinations buffer rows into batches and
// flush concurrently at stream end.
package job
