package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// readyPollInterval is the delay between readiness probes.
const readyPollInterval = 100 * time.Millisecond

// WaitForReady calls ping until it succeeds or timeout elapses.
// name identifies the backend in the returned error.
func WaitForReady(ctx context.Context, name string, timeout time.Duration, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, ping(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(readyPollInterval)),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err != nil {
		return fmt.Errorf("timeout waiting for %s: %w", name, err)
	}
	return nil
}
