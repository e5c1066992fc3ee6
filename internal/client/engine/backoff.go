package engine

import (
	"math/rand/v2"
	"time"
)

const (
	backoffBase = 5 * time.Second
	backoffMax  = 5 * time.Minute
)

// Backoff returns min(5s * 2^attempt, 5m) with jitter in [d/2, d].
func Backoff(attempt int) time.Duration {
	return backoffWithJitter(attempt, rand.Float64)
}

func backoffWithJitter(attempt int, rnd func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := backoffMax
	if attempt < 16 {
		d = min(backoffBase<<attempt, backoffMax)
	}
	half := d / 2
	return half + time.Duration(rnd()*float64(half))
}
