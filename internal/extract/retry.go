package extract

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"cryptodata/internal/config"
	apperr "cryptodata/internal/errors"
)

// retryWithResult retries fn with exponential backoff and jitter. Only
// transient failures retry: SOURCE_UNAVAILABLE and RATE_LIMIT. Validation,
// unsupported-request and schema-mapping errors return immediately, they
// will not heal on a second call.
func retryWithResult[T any](ctx context.Context, cfg config.RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
		wait   = cfg.InitialWait
	)
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if !apperr.IsRetryable(err) {
			return result, err
		}
		if attempt == cfg.MaxRetries {
			return result, fmt.Errorf("max retries exceeded: %w", err)
		}

		jitter := 1.0 + cfg.Jitter*(2*rand.Float64()-1)
		delay := time.Duration(float64(wait) * jitter)
		if cfg.MaxWait > 0 && delay > cfg.MaxWait {
			delay = cfg.MaxWait
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}

		wait = time.Duration(float64(wait) * cfg.Factor)
		if cfg.MaxWait > 0 && wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}
	}
	return result, err
}
