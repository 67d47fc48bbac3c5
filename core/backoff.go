package core

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/smartystreets/clock"
)

func newBackOff(initial, maximum time.Duration) *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initial
	policy.MaxInterval = maximum
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.5
	policy.MaxElapsedTime = 0
	policy.Reset()
	return policy
}

// sleep waits for duration or until ctx is done. A non-nil sleeper records
// the nap instead of waiting.
func sleep(ctx context.Context, sleeper *clock.Sleeper, duration time.Duration) error {
	if sleeper != nil {
		sleeper.Sleep(duration)
		return ctx.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
