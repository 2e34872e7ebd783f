package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Gate is the shared request limiter every outbound exchange call passes
// through. One instance is constructed at startup and handed to each
// network-calling component; a nil Gate never blocks, which keeps tests
// and dry runs free of artificial sleeps.
type Gate struct {
	limiter *rate.Limiter
}

// New creates a gate allowing at most perSecond calls in any one-second
// window, with a burst of the same size.
func New(perSecond int) *Gate {
	if perSecond <= 0 {
		return nil
	}
	return &Gate{limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

// Wait blocks until a slot is available or the context is done.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// Allow reports whether a call could proceed right now without blocking.
func (g *Gate) Allow() bool {
	if g == nil || g.limiter == nil {
		return true
	}
	return g.limiter.Allow()
}
