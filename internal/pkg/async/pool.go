// Package async runs a small batch of named tasks on a bounded worker
// pool and collects their results by name. The analytics reader uses it
// to fan out the independent breakdown queries of a single response.
package async

import (
	"context"
	"sync"
)

// Task is one named unit of work.
type Task struct {
	Name string
	Run  func() (interface{}, error)
}

// Result is the outcome of a single task.
type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool executes task batches with a fixed number of workers.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given worker count.
func NewPool(workers int) *Pool {
	return &Pool{workers: workers}
}

// Execute runs the tasks and returns their results keyed by task name.
// When ctx is cancelled, tasks already picked up report ctx.Err() and
// tasks never dispatched are missing from the map.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	jobs := make(chan Task)
	out := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				if err := ctx.Err(); err != nil {
					out <- Result{Name: task.Name, Err: err}
					continue
				}
				data, err := task.Run()
				out <- Result{Name: task.Name, Data: data, Err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case jobs <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(out)

	results := make(map[string]Result, len(tasks))
	for res := range out {
		results[res.Name] = res
	}
	return results
}
