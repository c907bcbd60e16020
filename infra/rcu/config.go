package rcu

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultSweepInterval    = 10 * time.Millisecond
	DefaultBackoffMin       = 50 * time.Microsecond
	DefaultBackoffMax       = 10 * time.Millisecond
	DefaultStallWarning     = time.Second
	DefaultMaxSealedBatches = 64
)

// Config tunes a Domain. Zero fields take the defaults above.
type Config struct {
	// SweepInterval is the cadence of the background sweeper.
	SweepInterval time.Duration
	// BackoffMin and BackoffMax bound the sleep between retries in
	// Barrier, Synchronize and Shutdown.
	BackoffMin time.Duration
	BackoffMax time.Duration
	// StallWarning is how long a blocked waiter goes without progress
	// before it logs the threads holding the grace period. Negative
	// disables the warning.
	StallWarning time.Duration
	// MaxSealedBatches bounds the sealed queue. Must be a power of two.
	MaxSealedBatches uint64
	// Debug turns on guard validation and use-after-unregister checks.
	Debug bool

	Logger     *log.Logger
	Registerer prometheus.Registerer
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = DefaultBackoffMin
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = DefaultBackoffMax
		if c.BackoffMax < c.BackoffMin {
			c.BackoffMax = c.BackoffMin
		}
	}
	if c.StallWarning == 0 {
		c.StallWarning = DefaultStallWarning
	}
	if c.MaxSealedBatches == 0 {
		c.MaxSealedBatches = DefaultMaxSealedBatches
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// backoff doubles from min to max.
type backoff struct {
	min, max, cur time.Duration
}

func newBackoff(c Config) backoff {
	return backoff{min: c.BackoffMin, max: c.BackoffMax}
}

func (b *backoff) next() time.Duration {
	if b.cur == 0 {
		b.cur = b.min
		return b.cur
	}
	b.cur *= 2
	if b.cur > b.max {
		b.cur = b.max
	}
	return b.cur
}

func (b *backoff) reset() { b.cur = 0 }
