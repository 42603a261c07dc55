// Package workerpool implements the fixed-size FIFO job executor of
// spec §4.8, plus the task-queue backpressure the consumer loop
// applies before every enqueue — the CPU-bound mirror of the intake
// backpressure in internal/intake.
package workerpool

import (
	"sync"
	"time"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/logs"
)

const (
	sleepStepMS = 10
	sleepWarnMS = 1000
)

// Job is a unit of work submitted to the pool.
type Job func()

// Pool is a fixed-size FIFO task executor with no mid-task
// cancellation (spec §4.8).
type Pool struct {
	jobs   chan Job
	wg     sync.WaitGroup
	logger *logp.Logger

	mu        sync.Mutex
	queued    int
	taskSleep int
}

// New starts size worker goroutines draining a FIFO job channel.
func New(size int) *Pool {
	p := &Pool{
		jobs:   make(chan Job),
		logger: logs.New(logs.Worker),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
		p.mu.Lock()
		p.queued--
		p.mu.Unlock()
	}
}

// CheckBackpressure mirrors check_task_queue_size: if the queue is
// over maxTaskQueueSize the caller's sleep counter grows by 10ms (and
// a warning logs past 1000ms); otherwise it decays by 10ms, floored
// at 0. Call before every Submit.
func (p *Pool) CheckBackpressure(maxTaskQueueSize int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queued > maxTaskQueueSize {
		p.taskSleep += sleepStepMS
		if p.taskSleep > sleepWarnMS {
			p.logger.Warnf("task queue size: %d", p.queued)
		}
	} else {
		p.taskSleep -= sleepStepMS
		if p.taskSleep < 0 {
			p.taskSleep = 0
		}
	}
	return time.Duration(p.taskSleep) * time.Millisecond
}

// Submit enqueues job to run on the pool, applying the backpressure
// sleep computed by CheckBackpressure first.
func (p *Pool) Submit(maxTaskQueueSize int, job Job) {
	sleep := p.CheckBackpressure(maxTaskQueueSize)
	if sleep > 0 {
		time.Sleep(sleep)
	}
	p.mu.Lock()
	p.queued++
	p.mu.Unlock()
	p.jobs <- job
}

// QueueSize reports the current number of queued-or-running jobs.
func (p *Pool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queued
}

// Close stops accepting new jobs and waits for all workers to drain
// the channel and finish their current job.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
