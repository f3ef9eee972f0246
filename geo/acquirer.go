package geo

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultWait bounds how long a single high-accuracy acquisition may take.
const DefaultWait = 15 * time.Second

// Acquirer drives location acquisition and tracks the location-status
// indicator. The manual retry runs the exact same operation as the
// automatic first attempt, so retrying is always safe.
type Acquirer struct {
	provider Provider
	wait     time.Duration

	mu       sync.Mutex
	status   string
	position *Position
	onLock   func(Position)
}

// NewAcquirer wraps a location provider. A non-positive wait falls back to
// DefaultWait.
func NewAcquirer(provider Provider, wait time.Duration) *Acquirer {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Acquirer{
		provider: provider,
		wait:     wait,
		status:   StatusInitializing,
	}
}

// OnLock registers the hook invoked after every successful acquisition,
// e.g. to refresh the nearby-reports feed.
func (a *Acquirer) OnLock(fn func(Position)) {
	a.mu.Lock()
	a.onLock = fn
	a.mu.Unlock()
}

// Acquire requests a fix from the provider, bounded by the configured wait.
// On success the status indicator moves to locked and the lock hook fires.
// On failure the error is categorized and the indicator reflects the
// failure class.
func (a *Acquirer) Acquire(ctx context.Context) (Position, error) {
	a.setStatus(StatusAcquiring)

	ctx, cancel := context.WithTimeout(ctx, a.wait)
	defer cancel()

	pos, err := a.provider.CurrentPosition(ctx)
	if err != nil {
		err = categorize(ctx, err)
		a.setStatus(failureStatus(err))
		log.Printf("Location acquisition failed: %v", err)
		return Position{}, err
	}

	a.mu.Lock()
	a.position = &pos
	a.status = StatusLocked
	hook := a.onLock
	a.mu.Unlock()

	if hook != nil {
		hook(pos)
	}
	return pos, nil
}

// Position returns the last locked position, if any.
func (a *Acquirer) Position() (Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.position == nil {
		return Position{}, false
	}
	return *a.position, true
}

// Status returns the current location-status indicator text.
func (a *Acquirer) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Acquirer) setStatus(status string) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
}

// categorize folds context expiry into the timeout class so providers do
// not have to translate it themselves.
func categorize(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, ErrUnsupported):
		return StatusUnsupported
	case errors.Is(err, ErrInsecureOrigin):
		return StatusBlocked
	case errors.Is(err, ErrPermissionDenied):
		return StatusDenied
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	default:
		return StatusDenied
	}
}
