package worker

import (
	"context"
	"sync"
)

// Task is one unit of work run by a Pool
type Task[T any] func(ctx context.Context) (T, error)

// TaskResult is the value or error of the task at Index
type TaskResult[T any] struct {
	Index int
	Value T
	Err   error
}

type job[T any] struct {
	index int
	task  Task[T]
}

// Pool runs independent tasks on a fixed number of workers. It is for
// read-only fan-out such as fetching several record lists; uploads go
// through BatchRunner and stay sequential.
type Pool[T any] struct {
	workers int
}

// NewPool creates a pool with the specified number of workers
func NewPool[T any](workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	return &Pool[T]{workers: workers}
}

// Run executes every task and returns the results in task order.
// Tasks not started before ctx is done report ctx.Err().
func (p *Pool[T]) Run(ctx context.Context, tasks []Task[T]) []TaskResult[T] {
	results := make([]TaskResult[T], len(tasks))
	jobs := make(chan job[T], p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := TaskResult[T]{Index: j.index}
				if err := ctx.Err(); err != nil {
					res.Err = err
				} else {
					res.Value, res.Err = j.task(ctx)
				}
				// each index is written by exactly one worker
				results[j.index] = res
			}
		}()
	}

	for i, t := range tasks {
		jobs <- job[T]{index: i, task: t}
	}
	close(jobs)
	wg.Wait()

	return results
}
