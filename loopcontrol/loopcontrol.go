// Package loopcontrol implements the dispatch loop's adaptive backoff:
// it decides how long the loop sleeps between iterations based on
// whether the previous iteration moved any messages, doubling the
// sleep on consecutive idle iterations up to a configured ceiling and
// collapsing back to 1ms the instant activity resumes.
package loopcontrol

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/cenkalti/backoff"
)

const initialInterval = time.Millisecond

// ErrShutdown is returned by an idle IterationFinished call once Shutdown
// has been called, whether before or during the sleep. It is a normal
// exit signal, never logged as a failure.
var ErrShutdown = errors.New("loopcontrol: shutdown requested")

// ErrLoopFatal wraps a panic recovered from the sleep primitive itself.
// Per spec, a spurious interruption of the sleep (as opposed to a
// deliberate shutdown) is unrecoverable for the loop.
var ErrLoopFatal = errors.New("loopcontrol: sleep primitive failed")

// LoopControl tracks the current backoff interval for one dispatch loop.
// It is only ever driven by the loop's own thread except for Shutdown,
// which may be called from any goroutine.
type LoopControl struct {
	config   Config
	clock    clock.Clock
	backoff  *backoff.ExponentialBackOff
	processed int

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New returns a LoopControl with current_sleep_ms initialised to 1ms.
func New(config Config, clk clock.Clock) *LoopControl {
	config = config.applyDefaults()

	b := &backoff.ExponentialBackOff{
		InitialInterval:     initialInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         config.MaxSleep,
		MaxElapsedTime:      0,
		Clock:               clk,
	}
	b.Reset()

	return &LoopControl{
		config:     config,
		clock:      clk,
		backoff:    b,
		shutdownCh: make(chan struct{}),
	}
}

// IncrementProcessed records that one message moved (inbound delivered
// or outbound posted) during the current iteration.
func (lc *LoopControl) IncrementProcessed() {
	lc.processed++
}

// IterationFinished is the end-of-iteration barrier. If any message
// moved this iteration, the backoff resets and it returns immediately.
// Otherwise it sleeps for the current backoff interval, doubling it
// (clamped to MaxSleep) for next time.
//
// Returns ErrShutdown if Shutdown was called during the sleep, or an
// error wrapping ErrLoopFatal if the sleep primitive itself panicked.
func (lc *LoopControl) IterationFinished() error {
	if lc.processed > 0 {
		lc.backoff.Reset()
		lc.processed = 0
		return nil
	}
	return lc.sleep(lc.backoff.NextBackOff())
}

func (lc *LoopControl) sleep(d time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrLoopFatal, r)
		}
	}()

	timer := lc.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-lc.shutdownCh:
		return ErrShutdown
	}
}

// Shutdown wakes a blocked IterationFinished call and causes every
// subsequent idle call to return ErrShutdown instead of sleeping. A call
// after an iteration that moved messages still resets the backoff and
// returns nil. Safe to call more than once and from any goroutine.
func (lc *LoopControl) Shutdown() {
	lc.shutdownOnce.Do(func() {
		close(lc.shutdownCh)
	})
}
