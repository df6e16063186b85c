package linking

import (
	"context"
	"time"
)

// SessionIdentity is the live authentication state. UserID is not
// authoritative while Loading is true.
type SessionIdentity struct {
	UserID  string
	Loading bool
}

// IdentitySource reports the current session identity
type IdentitySource interface {
	CurrentIdentity(ctx context.Context) SessionIdentity
}

// ReadyWaiter is implemented by identity sources that can signal when they
// have finished loading. AwaitReady returns once loading is done or ctx ends.
type ReadyWaiter interface {
	AwaitReady(ctx context.Context) error
}

// RetryPolicy bounds how long the processor waits for a loading session
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy polls three times, one second apart
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: time.Second}

// budget is the total wait allowed for a ReadyWaiter
func (p RetryPolicy) budget() time.Duration {
	return time.Duration(p.attempts()) * p.Delay
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// IdentitySourceKind records where a callback's user ID came from
type IdentitySourceKind string

const (
	SourceSession      IdentitySourceKind = "session"
	SourcePendingShort IdentitySourceKind = "pending_short"
	SourcePendingLong  IdentitySourceKind = "pending_long"
	SourceNone         IdentitySourceKind = "none"
)

// StaticIdentity is an IdentitySource with a fixed answer
type StaticIdentity SessionIdentity

func (s StaticIdentity) CurrentIdentity(context.Context) SessionIdentity {
	return SessionIdentity(s)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
