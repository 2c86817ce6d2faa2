package infrastructure

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// retryPolicy spaces connection attempts: minDelay grows by factor per attempt, then a random
// jitter up to maxDelay is added. The result never exceeds maxDelay.
type retryPolicy struct {
	maxRetry int
	factor   float64
	minDelay time.Duration
	maxDelay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

type retryDefaults struct {
	factor   float64
	minDelay time.Duration
	maxDelay time.Duration
}

func newRetryPolicy(maxRetry int, factor float64, minDelay, maxDelay time.Duration, fallback retryDefaults) *retryPolicy {
	if maxRetry < 0 {
		maxRetry = 0
	}
	if factor < 1 {
		factor = fallback.factor
	}
	if minDelay <= 0 {
		minDelay = fallback.minDelay
	}
	if maxDelay <= 0 {
		maxDelay = fallback.maxDelay
	}

	return &retryPolicy{
		maxRetry: maxRetry,
		factor:   factor,
		minDelay: minDelay,
		maxDelay: max(maxDelay, minDelay),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *retryPolicy) delay(attempt int) time.Duration {
	grown := float64(p.minDelay) * math.Pow(p.factor, float64(attempt))
	base := time.Duration(min(grown, float64(p.maxDelay)))
	if p.maxDelay <= p.minDelay {
		return base
	}

	p.mu.Lock()
	jitter := time.Duration(p.rng.Int63n(int64(p.maxDelay-p.minDelay) + 1))
	p.mu.Unlock()

	return min(base+jitter, p.maxDelay)
}

// do runs fn until it succeeds, maxRetry retries are spent or ctx is done.
func (p *retryPolicy) do(ctx context.Context, target string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetry; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.maxRetry {
			break
		}

		wait := p.delay(attempt)
		logrus.WithFields(logrus.Fields{
			"target":    target,
			"attempt":   attempt + 1,
			"max_retry": p.maxRetry,
			"retry_in":  wait.String(),
		}).WithError(lastErr).Warn("connection attempt failed")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return fmt.Errorf("connect %s after %d attempts: %w", target, p.maxRetry+1, lastErr)
}
