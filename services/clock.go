package services

import (
	"context"
	"time"
)

// Clock returns the current time. Workflows take one so tests can pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// persistentContext detaches ctx from its caller's cancellation so
// best-effort side effects finish after the HTTP request returns.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
