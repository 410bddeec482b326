package poll

import (
	"context"
	"sync"

	"github.com/dreamtide/veod/job"
	"github.com/dreamtide/veod/logger"
)

// Registry supervises the active polling loops, at most one per remote
// operation id. Duplicate starts are deliberately dropped: the existing
// loop keeps ownership of the job's mutations.
type Registry struct {
	engine  *Engine
	baseCtx context.Context

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a registry whose loops all descend from baseCtx, so
// process shutdown cancels every loop.
func NewRegistry(baseCtx context.Context, engine *Engine) *Registry {
	return &Registry{
		engine:  engine,
		baseCtx: baseCtx,
		active:  make(map[string]context.CancelFunc),
	}
}

// Start spawns a polling loop for the job. No-op when a loop for the same
// operation id is already active.
func (r *Registry) Start(j *job.Job) {
	if j.OperationID == "" {
		logger.Warnw("Refusing to poll job without operation id", "job_id", j.ID)
		return
	}

	r.mu.Lock()
	if _, exists := r.active[j.OperationID]; exists {
		r.mu.Unlock()
		logger.Debugw("Polling loop already active, ignoring duplicate start",
			"operation_id", j.OperationID)
		return
	}

	ctx, cancel := context.WithCancel(r.baseCtx)
	r.active[j.OperationID] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.deregister(j.OperationID)
		r.engine.Run(ctx, j)
	}()
}

// Cancel stops the loop for an operation id. Idempotent on unknown ids.
func (r *Registry) Cancel(operationID string) {
	r.mu.Lock()
	cancel, exists := r.active[operationID]
	if exists {
		delete(r.active, operationID)
	}
	r.mu.Unlock()

	if exists {
		cancel()
	}
}

// IsActive reports whether a loop currently owns the operation id.
func (r *Registry) IsActive(operationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.active[operationID]
	return exists
}

// ActiveCount returns the number of live polling loops.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Shutdown cancels every loop and waits for them to exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for id, cancel := range r.active {
		cancel()
		delete(r.active, id)
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Registry) deregister(operationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, exists := r.active[operationID]; exists {
		delete(r.active, operationID)
		cancel()
	}
}
