// Package enrich implements the optional Phase-2 enrichment worker pool:
// a flat in-process job queue that re-runs deeper processing (e.g.
// LLM re-classification, similarity recompute) on a node after the
// synchronous import path returns (spec.md §4.7 step 8).
//
// Grounded on the teacher's orchestration.TaskWorkerPool: a fixed-size
// pool of goroutines dequeuing work and invoking a registered handler,
// with the same Start/Stop lifecycle and component-aware logging,
// generalized from the teacher's pluggable TaskQueue/TaskStore
// abstraction down to a single in-process channel since decant has no
// external queue backend to swap in.
package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/RBarbieri13/decant/internal/core"
)

// Job is one unit of Phase-2 work: re-processing an already-imported node.
type Job struct {
	ID         string
	NodeID     string
	EnqueuedAt time.Time
}

// Handler performs the Phase-2 work for one job.
type Handler func(ctx context.Context, job Job) error

// Config configures a Pool.
type Config struct {
	WorkerCount     int
	QueueCapacity   int
	ShutdownTimeout time.Duration
}

// DefaultConfig mirrors the teacher's TaskWorkerPool defaults.
func DefaultConfig() Config {
	return Config{WorkerCount: 5, QueueCapacity: 256, ShutdownTimeout: 30 * time.Second}
}

// Pool is a fixed-size worker pool draining an in-process job channel.
type Pool struct {
	jobs    chan Job
	handler Handler
	cfg     Config
	logger  core.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     atomic.Bool
	activeCount atomic.Int32
}

// New builds a Pool. logger is wrapped with component "enrich" if it is
// component-aware, matching the teacher's "framework/orchestration" tag
// convention.
func New(handler Handler, cfg Config, logger core.ComponentAwareLogger) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultConfig().WorkerCount
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultConfig().QueueCapacity
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	var l core.Logger = core.NoOpLogger{}
	if logger != nil {
		l = logger.WithComponent("enrich")
	}
	return &Pool{jobs: make(chan Job, cfg.QueueCapacity), handler: handler, cfg: cfg, logger: l}
}

// Start launches the worker goroutines; it returns immediately (unlike
// the teacher's blocking Start, since decant's HTTP server owns the
// process lifecycle and must not block on the pool).
func (p *Pool) Start(ctx context.Context) {
	if p.running.Swap(true) {
		return
	}
	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.runWorker(workerCtx)
	}
	p.logger.Info("enrichment worker pool started", map[string]interface{}{"workers": p.cfg.WorkerCount})
}

// Stop cancels worker context and waits up to ShutdownTimeout for
// in-flight jobs to finish.
func (p *Pool) Stop() {
	if !p.running.Load() {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownTimeout):
		p.logger.Warn("enrichment worker pool shutdown timed out", nil)
	}
	p.running.Store(false)
}

// Enqueue posts a job for nodeID and returns its generated job id plus
// whether it was actually queued (false means the queue is full and the
// job was dropped — the caller still returns success to the client since
// enrichment is best-effort, per spec.md §4.7 step 8/9).
func (p *Pool) Enqueue(nodeID string) (jobID string, queued bool) {
	jobID = uuid.NewString()
	job := Job{ID: jobID, NodeID: nodeID, EnqueuedAt: time.Now()}
	select {
	case p.jobs <- job:
		return jobID, true
	default:
		p.logger.Warn("enrichment queue full, dropping job", map[string]interface{}{"node_id": nodeID})
		return jobID, false
	}
}

func (p *Pool) runWorker(ctx context.Context) {
	defer p.wg.Done()
	p.activeCount.Add(1)
	defer p.activeCount.Add(-1)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.process(ctx, job)
		}
	}
}

func (p *Pool) process(ctx context.Context, job Job) {
	if err := p.handler(ctx, job); err != nil {
		p.logger.Error("enrichment job failed", map[string]interface{}{
			"job_id": job.ID, "node_id": job.NodeID, "error": err.Error(),
		})
	}
}
