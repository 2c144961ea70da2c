package prefetchpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueRunsAllTasks(t *testing.T) {
	p := New(4, 16)
	defer p.Close()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		p.Enqueue(func() {
			count.Add(1)
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not complete in time")
	}

	assert.Equal(t, int32(10), count.Load())
}

func TestCloseWaitsForInFlightTasks(t *testing.T) {
	p := New(2, 4)

	var ran atomic.Bool
	p.Enqueue(func() {
		time.Sleep(10 * time.Millisecond)
		ran.Store(true)
	})

	p.Close()
	assert.True(t, ran.Load())
}

func TestEnqueueAfterCloseIsNoop(t *testing.T) {
	p := New(1, 1)
	p.Close()

	var ran atomic.Bool
	p.Enqueue(func() { ran.Store(true) })
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestTryEnqueueReturnsFalseWhenClosed(t *testing.T) {
	p := New(1, 1)
	p.Close()
	assert.False(t, p.TryEnqueue(func() {}))
}

func TestTryEnqueueReturnsFalseWhenQueueFull(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	p.Enqueue(func() {
		close(started)
		<-block
	})
	<-started

	assert.True(t, p.TryEnqueue(func() {})) // fills the 1-slot queue
	ok := p.TryEnqueue(func() {})
	close(block)
	assert.False(t, ok)
}
