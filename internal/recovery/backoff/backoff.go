// Package backoff computes inter-retry delays from a retry policy.
package backoff

import (
	"math"
	"math/rand"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
)

// Delay returns the delay to sleep after a failed attempt. attempt is 1-based:
// the delay before attempt 2 uses attempt=1, and so on.
//
//	fixed:       base
//	linear:      base * attempt
//	exponential: base * 2^(attempt-1)
//
// The result is clamped to the policy's MaxDelay; with Jitter enabled a
// uniform offset of up to ±10% is added. Never negative.
func Delay(p domain.RetryPolicy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay float64
	switch p.Backoff {
	case domain.BackoffLinear:
		delay = float64(p.BaseDelay) * float64(attempt)
	case domain.BackoffExponential:
		delay = float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	default: // fixed
		delay = float64(p.BaseDelay)
	}

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter {
		delay += delay * 0.1 * (rand.Float64()*2 - 1)
	}

	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
