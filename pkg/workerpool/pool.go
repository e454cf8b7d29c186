// Package workerpool runs independent units of work with bounded parallelism.
package workerpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures the worker pool.
type Config struct {
	MaxConcurrent int // Maximum items in flight (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 4,
	}
}

// Pool executes work items on a fixed number of workers.
// Workers check for cancellation before picking up each item. An item that is
// already running receives ctx and decides itself how to react to it.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a worker pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the effective concurrency limit.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// Item represents a unit of work to be processed.
type Item[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// Result is the outcome of one item. Started is false when the item was
// never picked up because the context was cancelled first.
type Result[T any] struct {
	Index   int
	ID      string
	Value   T
	Err     error
	Started bool
}

// Process executes all items and returns one result per item, in submission order.
// Continues processing all items even if some fail. Once ctx is cancelled no
// further items are started; their results carry ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []Item[T],
	onProgress func(completed, total int),
) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], len(items))
	indexes := make(chan int)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	report := func() {
		if onProgress == nil {
			return
		}
		mu.Lock()
		completed++
		done := completed
		mu.Unlock()
		onProgress(done, len(items))
	}

	workers := min(pool.config.MaxConcurrent, len(items))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				item := items[i]
				if err := ctx.Err(); err != nil {
					results[i] = Result[T]{Index: i, ID: item.ID, Err: err}
					report()
					continue
				}
				value, err := item.Execute(ctx)
				results[i] = Result[T]{Index: i, ID: item.ID, Value: value, Err: err, Started: true}
				report()
			}
		}()
	}

	for i := range items {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	pool.logger.Debug("Processed work items",
		zap.Int("total", len(items)),
		zap.Int("workers", workers))

	return results
}
