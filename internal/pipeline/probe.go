package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// probeWithRetry runs op up to attempts times, waiting delay between
// tries. External stores may be suspended between batch runs; the
// first probe absorbs the wake-up, the retries the cold-start latency.
func probeWithRetry(ctx context.Context, attempts uint64, delay time.Duration, op func(context.Context) error) error {
	if attempts == 0 {
		attempts = 1
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), attempts-1)
	return backoff.Retry(func() error {
		return op(ctx)
	}, backoff.WithContext(policy, ctx))
}
