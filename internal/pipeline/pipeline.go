package pipeline

import (
	"context"
	"log"
	"sync"
)

// Pipeline applies a fixed sequence of stages to every item received from
// a channel. It is generic over the item type T.
type Pipeline[T any] struct {
	stages []Stage[T]
}

// NewPipeline constructs a Pipeline from the provided stages. Stages are
// applied to each item in order.
func NewPipeline[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages}
}

// Process consumes items from in until it is closed, running up to workers
// items concurrently. For each item the stages run sequentially with all
// steps of a stage started together. The first step error of a stage is
// logged and abandons the remaining stages for that item only; sibling
// items keep flowing. Process returns when the input channel is drained or
// ctx is cancelled.
func (p *Pipeline[T]) Process(ctx context.Context, in <-chan *T, workers int) {
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-in:
					if !ok {
						return
					}
					p.run(ctx, item)
				}
			}
		}()
	}
	wg.Wait()
}

func (p *Pipeline[T]) run(ctx context.Context, item *T) {
	for _, stage := range p.stages {
		var wg sync.WaitGroup
		var mu sync.Mutex
		var stageErr error

		for _, step := range stage.steps {
			wg.Add(1)
			go func(step Step[T]) {
				defer wg.Done()
				if err := step(ctx, item); err != nil {
					log.Printf("Step failed: %v", err)
					mu.Lock()
					stageErr = err
					mu.Unlock()
				}
			}(step)
		}
		wg.Wait() // stage barrier

		if stageErr != nil {
			return
		}
	}
}
