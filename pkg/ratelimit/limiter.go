// Package ratelimit paces repeated operations, most notably connection
// attempts made by the socket dialer. A connection that flaps rapidly would
// otherwise hammer the remote endpoint with dials faster than the retry
// delay alone can bound, so the dialer takes a token from a limiter before
// every handshake.
//
// The implementation wraps Uber's token bucket limiter behind a small
// interface so tests can substitute an unlimited one.
package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/ratelimit"
)

// Rate describes how many operations are permitted within an interval.
type Rate struct {
	// Limit is the maximum number of operations allowed within Interval.
	Limit int

	// Interval is the window over which Limit applies.
	Interval time.Duration
}

// PerSecond is shorthand for n operations per second.
func PerSecond(n int) Rate {
	return Rate{Limit: n, Interval: time.Second}
}

// Limiter controls the pace of operations. Wait blocks until the next
// operation is permitted or the context is cancelled.
type Limiter interface {
	Wait(ctx context.Context) error
	SetLimit(rate Rate) error
}

type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a Limiter using Uber's token bucket
// implementation, converting the Rate into operations per second.
func NewTokenBucketLimiter(rate Rate) Limiter {
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	return &uberLimiter{
		limiter: ratelimit.New(int(rps)),
		rate:    rate,
	}
}

func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "rate limit wait cancelled")
	default:
		l.limiter.Take()
		return nil
	}
}

func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return errors.Errorf("invalid rate limit: %+v", rate)
	}
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	l.limiter = ratelimit.New(int(rps))
	l.rate = rate
	return nil
}

// unlimited never blocks.
type unlimited struct{}

// NewUnlimited returns a Limiter that admits every operation immediately.
func NewUnlimited() Limiter { return unlimited{} }

func (unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

func (unlimited) SetLimit(Rate) error { return nil }
