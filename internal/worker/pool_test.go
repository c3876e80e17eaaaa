package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingJob struct {
	counter *atomic.Int64
	done    *sync.WaitGroup
	err     error
}

func (j *countingJob) Process(context.Context) error {
	defer j.done.Done()
	j.counter.Add(1)
	return j.err
}

func TestPoolProcessesEveryJob(t *testing.T) {
	pool := NewPool(4, 32)
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int64
	var done sync.WaitGroup
	for i := 0; i < 20; i++ {
		done.Add(1)
		pool.Enqueue(&countingJob{counter: &counter, done: &done})
	}
	done.Wait()

	assert.Equal(t, int64(20), counter.Load())
}

func TestPoolSurvivesJobErrors(t *testing.T) {
	// A failed job is logged and the worker keeps serving the queue.
	pool := NewPool(1, 8)
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int64
	var done sync.WaitGroup
	done.Add(2)
	pool.Enqueue(&countingJob{counter: &counter, done: &done, err: errors.New("leg failed")})
	pool.Enqueue(&countingJob{counter: &counter, done: &done})
	done.Wait()

	assert.Equal(t, int64(2), counter.Load())
}

func TestPoolStopWaitsForWorkers(t *testing.T) {
	pool := NewPool(2, 8)
	pool.Start()

	var counter atomic.Int64
	var done sync.WaitGroup
	done.Add(1)
	pool.Enqueue(&countingJob{counter: &counter, done: &done})
	done.Wait()

	finished := make(chan struct{})
	go func() {
		pool.Stop()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after workers drained")
	}
}
