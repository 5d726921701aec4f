package worker

import (
	"log"
	"sync"
	"time"
)

// Job is one unit of background work.
type Job func()

const defaultIdleTimeout = 30 * time.Second

// Pool is a bounded goroutine pool for best-effort background work. It keeps
// at least min workers alive, grows to max under load, and retires workers
// that sit idle past the timeout. Submit never blocks: when the queue is
// full and the pool is maxed out, the job is dropped with a log line.
type Pool struct {
	mu      sync.Mutex
	jobs    chan Job
	quit    chan struct{}
	min     int
	max     int
	running int
	idle    time.Duration
	closed  bool
}

func NewPool(minWorkers, maxWorkers, queueSize int, idle time.Duration) *Pool {
	if minWorkers < 0 {
		minWorkers = 0
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	if maxWorkers == 0 {
		maxWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = maxWorkers
	}
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	p := &Pool{
		jobs: make(chan Job, queueSize),
		quit: make(chan struct{}),
		min:  minWorkers,
		max:  maxWorkers,
		idle: idle,
	}
	for i := 0; i < p.min; i++ {
		p.spawnLocked()
	}
	return p
}

// Submit enqueues a job. Returns false when the job was dropped.
func (p *Pool) Submit(job Job) bool {
	if job == nil {
		return false
	}
	select {
	case p.jobs <- job:
		p.growIfBacklogged()
		return true
	default:
	}

	p.mu.Lock()
	spawned := false
	if !p.closed && p.running < p.max {
		p.spawnLocked()
		spawned = true
	}
	p.mu.Unlock()

	if spawned {
		select {
		case p.jobs <- job:
			return true
		default:
		}
	}
	log.Printf("worker pool saturated, dropping job")
	return false
}

// growIfBacklogged adds a worker when jobs are waiting and capacity remains.
func (p *Pool) growIfBacklogged() {
	if len(p.jobs) == 0 {
		return
	}
	p.mu.Lock()
	if !p.closed && p.running < p.max {
		p.spawnLocked()
	}
	p.mu.Unlock()
}

func (p *Pool) spawnLocked() {
	p.running++
	go p.work()
}

func (p *Pool) work() {
	timer := time.NewTimer(p.idle)
	defer timer.Stop()
	for {
		select {
		case job := <-p.jobs:
			runJob(job)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.idle)
		case <-timer.C:
			if p.tryRetire() {
				return
			}
			timer.Reset(p.idle)
		case <-p.quit:
			p.tryRetire()
			return
		}
	}
}

// tryRetire lets an idle worker exit as long as the minimum stays staffed.
func (p *Pool) tryRetire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed && p.running <= p.min {
		return false
	}
	p.running--
	return true
}

// Stop shuts the pool down. Queued jobs that no worker picked up before
// shutdown are abandoned.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.quit)
}

func runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("background job panicked: %v", r)
		}
	}()
	job()
}
