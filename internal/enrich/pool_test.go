package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_EnqueueAndProcess(t *testing.T) {
	var mu sync.Mutex
	var processed []string
	done := make(chan struct{}, 1)

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		processed = append(processed, job.NodeID)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}

	p := New(handler, Config{WorkerCount: 1, QueueCapacity: 4}, nil)
	p.Start(context.Background())
	defer p.Stop()

	jobID, queued := p.Enqueue("node-1")
	require.True(t, queued)
	require.NotEmpty(t, jobID)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed within timeout")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"node-1"}, processed)
}

func TestPool_EnqueueDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	handler := func(ctx context.Context, job Job) error {
		<-block
		return nil
	}

	p := New(handler, Config{WorkerCount: 1, QueueCapacity: 1}, nil)
	p.Start(context.Background())
	defer func() {
		close(block)
		p.Stop()
	}()

	// First job occupies the single worker; give it time to be picked up.
	_, queued1 := p.Enqueue("node-1")
	require.True(t, queued1)
	time.Sleep(50 * time.Millisecond)

	// Second fills the one-slot queue.
	_, queued2 := p.Enqueue("node-2")
	require.True(t, queued2)

	// Third has nowhere to go: worker busy, queue full.
	_, queued3 := p.Enqueue("node-3")
	assert.False(t, queued3, "enqueue must not block and must report drop when the queue is full")
}

func TestPool_StopIsIdempotentAndSafeWithoutStart(t *testing.T) {
	p := New(func(context.Context, Job) error { return nil }, DefaultConfig(), nil)
	p.Stop() // never started
	p.Stop() // idempotent
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, 256, cfg.QueueCapacity)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}
