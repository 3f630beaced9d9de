package utils

import (
	"context"
	"math/rand/v2"
	"time"
)

type Backoff struct {
	base       time.Duration
	maxRetries int
}

// NewBackoff retries up to maxRetries times after the first attempt,
// doubling base each time. Negative retries are treated as zero.
func NewBackoff(base time.Duration, maxRetries int) Backoff {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return Backoff{base: base, maxRetries: maxRetries}
}

// Do calls fn until it succeeds, retries run out or ctx is done. The
// attempt index is passed to fn. Errors marked with Permanent stop the loop.
func (b Backoff) Do(ctx context.Context, fn func(i int) error) error {
	var err error
	for i := 0; i <= b.maxRetries; i++ {
		err = fn(i)
		if err == nil {
			return nil
		}
		if isPermanent(err) || i == b.maxRetries {
			break
		}
		t := time.NewTimer(b.delay(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return unwrapPermanent(err)
}

func (b Backoff) delay(i int) time.Duration {
	d := time.Duration(1<<i) * b.base
	if b.base > 0 {
		// jitter up to half the base
		d += time.Duration(rand.Int64N(int64(b.base)/2 + 1))
	}
	return d
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

func isPermanent(err error) bool {
	_, ok := err.(permanent)
	return ok
}

func unwrapPermanent(err error) error {
	if p, ok := err.(permanent); ok {
		return p.err
	}
	return err
}
