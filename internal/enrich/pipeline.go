package enrich

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Pipeline coordinates the execution of a sequence of stages for items flowing
// through a channel. For each incoming item, steps within the same stage run in
// parallel, and stages themselves run sequentially. Any step errors are logged
// and do not stop processing of the current item.
type Pipeline[T any] struct {
	stages []Stage[T]
}

// NewPipeline constructs a Pipeline from the provided stages. Stages will be
// applied to each item in order.
func NewPipeline[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages}
}

// Process consumes items from the input channel until it is closed. For each item:
//   - All steps in a stage are started concurrently and must complete before
//     moving to the next stage (a stage barrier).
//   - Errors returned by steps are logged and ignored so the pipeline can
//     continue processing.
//   - Once ctx is done, remaining items are drained without running steps.
func (p *Pipeline[T]) Process(ctx context.Context, in <-chan *T) {
	for item := range in {
		if ctx.Err() != nil {
			continue
		}
		p.apply(ctx, item)
	}
}

// ProcessAll runs every stage over items in place.
func (p *Pipeline[T]) ProcessAll(ctx context.Context, items []*T) {
	in := make(chan *T, len(items))
	for _, item := range items {
		in <- item
	}
	close(in)
	p.Process(ctx, in)
}

func (p *Pipeline[T]) apply(ctx context.Context, item *T) {
	for _, stage := range p.stages {
		var wg sync.WaitGroup
		for _, step := range stage.steps {
			wg.Add(1)
			go func(step Step[T]) {
				defer wg.Done()
				if err := step(ctx, item); err != nil {
					log.Warn().Err(err).Msg("enrichment step failed")
				}
			}(step)
		}
		wg.Wait() // stage barrier
	}
}
