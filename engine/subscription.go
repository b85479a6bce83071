package engine

import "context"

// Subscription is the handle of one activation.
type Subscription struct {
	a *activation
}

// ID returns the activation id.
func (s *Subscription) ID() string { return s.a.id }

// Cancel stops the activation. No value is delivered after Cancel returns
// and queued hand-offs are discarded. Safe from any goroutine, including
// subscriber callbacks.
func (s *Subscription) Cancel() { s.a.cancelActivation(context.Background()) }

// Dispose is Cancel.
func (s *Subscription) Dispose() { s.Cancel() }

// IsDisposed reports whether the activation ended.
func (s *Subscription) IsDisposed() bool {
	select {
	case <-s.a.done:
		return true
	default:
		return false
	}
}

// Done is closed once the activation ended and its terminal callback
// returned.
func (s *Subscription) Done() <-chan struct{} { return s.a.done }

// Err returns the terminal error: nil while running or after completion,
// the failure, or CANCELLED.
func (s *Subscription) Err() error { return s.a.Err() }

// Wait blocks until the activation ends or ctx is done.
func (s *Subscription) Wait(ctx context.Context) error {
	select {
	case <-s.a.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
