// Package lifecycle binds components to the process's startup and
// shutdown hooks: on_startup launches the dispatch loop goroutine; on
// shutdown, cleanup callbacks run in LIFO order before the handler's
// context is cancelled.
package lifecycle

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Cleanup is run during Shutdown. A returned error is logged but never
// stops the remaining cleanups from running.
type Cleanup func() error

// Handler coordinates startup tasks and shutdown cleanup for a process.
// Safe for concurrent use.
type Handler struct {
	logger *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cleanups  []Cleanup
	startups  []func()

	shutdownOnce sync.Once
}

// New creates a Handler deriving its context from parent.
func New(parent context.Context, logger *zap.SugaredLogger) *Handler {
	ctx, cancel := context.WithCancel(parent)
	return &Handler{logger: logger, ctx: ctx, cancel: cancel}
}

// Context returns a context cancelled once Shutdown runs.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// OnStartup registers task to run when Start is called. label is used
// only for logging.
func (h *Handler) OnStartup(label string, task func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.startups = append(h.startups, func() {
		h.logger.Infow("Running startup task", "task", label)
		task()
	})
}

// AddCleanup registers cleanup to run during Shutdown, in LIFO order
// relative to other registered cleanups.
func (h *Handler) AddCleanup(cleanup Cleanup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, cleanup)
}

// Start runs every registered startup task, in registration order.
func (h *Handler) Start() {
	h.mu.Lock()
	startups := make([]func(), len(h.startups))
	copy(startups, h.startups)
	h.mu.Unlock()

	for _, task := range startups {
		task()
	}
}

// Shutdown runs every registered cleanup in LIFO order, logging but
// not propagating individual failures, then cancels the context. Safe
// to call more than once; only the first call has effect.
func (h *Handler) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.mu.Lock()
		cleanups := make([]Cleanup, len(h.cleanups))
		copy(cleanups, h.cleanups)
		h.mu.Unlock()

		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				h.logger.Errorw("Cleanup task failed", "error", err)
			}
		}
		h.cancel()
	})
}
