package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	pool := NewPool(1, 4, 8, time.Second)
	defer pool.Stop()

	var count int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
		})
		if !ok {
			wg.Done()
		}
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("jobs did not finish, ran %d", atomic.LoadInt64(&count))
	}
	if atomic.LoadInt64(&count) == 0 {
		t.Fatalf("no jobs ran")
	}
}

func TestPoolDropsWhenSaturated(t *testing.T) {
	pool := NewPool(1, 1, 1, time.Second)
	defer pool.Stop()

	block := make(chan struct{})
	defer close(block)

	// Occupy the only worker.
	pool.Submit(func() { <-block })

	// Give the worker a moment to pick the job up, then fill the queue.
	time.Sleep(20 * time.Millisecond)
	pool.Submit(func() { <-block })

	dropped := false
	for i := 0; i < 5; i++ {
		if !pool.Submit(func() {}) {
			dropped = true
			break
		}
	}
	if !dropped {
		t.Fatalf("saturated pool accepted every job")
	}
}

func TestPoolRecoversFromPanickingJob(t *testing.T) {
	pool := NewPool(1, 1, 2, time.Second)
	defer pool.Stop()

	pool.Submit(func() { panic("se rompió") })

	ran := make(chan struct{})
	pool.Submit(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool died after a panicking job")
	}
}

func TestPoolNilJobRejected(t *testing.T) {
	pool := NewPool(0, 1, 1, time.Second)
	defer pool.Stop()
	if pool.Submit(nil) {
		t.Fatalf("nil job accepted")
	}
}
