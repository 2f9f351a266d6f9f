package session

import (
	"golang.org/x/time/rate"
)

// attemptRate and maxAttemptBurst bound how fast one connection can guess
// passwords before it is disconnected; without a bound, a connection can
// brute-force a password indefinitely. maxAttemptBurst lets an honest
// typo or two through before the limiter starts rejecting.
const (
	attemptRate     = rate.Limit(1.0 / 2) // one recovered attempt every 2s
	maxAttemptBurst = 3
)

// newAttemptLimiter builds a per-connection login attempt limiter.
func newAttemptLimiter() *rate.Limiter {
	return rate.NewLimiter(attemptRate, maxAttemptBurst)
}
