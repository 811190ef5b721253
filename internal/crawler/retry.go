package crawler

import (
	"math/rand"
	"time"
)

// RetryPolicy controls transient-failure retries during a crawl. Delays
// grow exponentially from BaseDelay and, with Jitter set, each delay is
// drawn uniformly from [0, backoff] so retrying clients spread out.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      bool
}

// DefaultRetryPolicy matches the fetch behavior the service has always
// shipped with: five attempts with full-jitter exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Jitter:      true,
	}
}

// Delay returns how long to wait before the given attempt (1-based). The
// first attempt never waits.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := p.BaseDelay
	for i := 2; i < attempt; i++ {
		backoff *= 2
	}
	if !p.Jitter {
		return backoff
	}
	return time.Duration(rand.Int63n(int64(backoff) + 1))
}

// Exhausted reports whether attempt (1-based) has used up the budget.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
