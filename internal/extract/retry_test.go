package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodata/internal/config"
	apperr "cryptodata/internal/errors"
)

func TestRetryFirstDelayUsesInitialWait(t *testing.T) {
	cfg := config.RetryConfig{
		MaxRetries:  1,
		InitialWait: time.Millisecond,
		Factor:      50,
	}

	start := time.Now()
	attempts := 0
	_, err := retryWithResult(context.Background(), cfg, func(context.Context) (int, error) {
		attempts++
		return 0, apperr.New(apperr.ErrCodeSourceUnavailable, "down", nil)
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	// the single delay is initial_wait, not initial_wait*factor
	assert.Less(t, elapsed, 40*time.Millisecond)
}
