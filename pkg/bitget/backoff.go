package bitget

import "time"

const (
	maxBackoff         = 60 * time.Second
	maxBackoffExponent = 6
)

// Backoff returns the wait before reconnection attempt n (1-based):
// min(60s, 2^min(n,6) s). Values below 1 are treated as 1.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > maxBackoffExponent {
		attempt = maxBackoffExponent
	}
	wait := time.Duration(1<<attempt) * time.Second
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}
