package workerpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmitRunsJobs(t *testing.T) {
	p := New(2)
	defer p.Close()

	var mu sync.Mutex
	sum := 0
	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		i := i
		p.Submit(100, func() {
			mu.Lock()
			sum += i
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()
	assert.Equal(t, 15, sum)
}

func TestCheckBackpressureGrowsAndDecays(t *testing.T) {
	p := New(0)
	defer p.Close()

	p.mu.Lock()
	p.queued = 10
	p.mu.Unlock()

	sleep := p.CheckBackpressure(1)
	assert.Equal(t, sleepStepMS*time.Millisecond, sleep)

	p.mu.Lock()
	p.queued = 0
	p.mu.Unlock()

	sleep = p.CheckBackpressure(1)
	assert.Equal(t, time.Duration(0), sleep)
}

func TestCloseWaitsForInFlightJobs(t *testing.T) {
	p := New(1)
	done := make(chan struct{})
	p.Submit(100, func() {
		time.Sleep(20 * time.Millisecond)
		close(done)
	})
	p.Close()
	select {
	case <-done:
	default:
		t.Fatal("Close returned before job finished")
	}
}
