package helpers

import (
	"math/rand"
	"time"
)

// -----------------------------------------------------------------------------
// Reconnect Backoff
// -----------------------------------------------------------------------------

const (
	backoffCapSec  = 30
	backoffMaxExp  = 6
	backoffJitterS = 1.0
)

// Backoff returns the delay before reconnect attempt number `attempt`
// (1-based consecutive failure count): min(30, 2^min(attempt,6)) seconds
// plus a jitter term in [0,1) seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	exp := attempt
	if exp > backoffMaxExp {
		exp = backoffMaxExp
	}

	base := 1 << exp
	if base > backoffCapSec {
		base = backoffCapSec
	}

	jitter := time.Duration(rand.Float64() * backoffJitterS * float64(time.Second))
	return time.Duration(base)*time.Second + jitter
}
