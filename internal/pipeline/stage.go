// Package pipeline provides a small, generic stage pipeline for items
// flowing through a channel. Steps within a stage run in parallel for one
// item, stages run sequentially, and independent items are processed by a
// pool of workers. A failing stage abandons its item without affecting the
// items being processed by sibling workers.
package pipeline

import (
	"context"
)

// Step is a single operation that mutates the given item. Implementations
// must be safe to run concurrently with the other steps of the same stage
// operating on the same item, and should honor ctx for cancellation.
type Step[T any] func(ctx context.Context, item *T) error

// Stage groups steps that are safe to execute in parallel for one item.
// The pipeline waits for all steps of a stage before starting the next
// stage (a stage barrier).
type Stage[T any] struct {
	steps []Step[T]
}

// NewStage constructs a Stage from the provided steps.
func NewStage[T any](steps ...Step[T]) Stage[T] {
	return Stage[T]{steps: steps}
}
