package core

import (
	"time"

	"github.com/chhz0/superv/breaker"
	"github.com/chhz0/superv/health"
	"github.com/chhz0/superv/router"
)

type Config struct {
	RoutingStrategy router.Strategy

	HeartbeatInterval time.Duration
	// MissedHeartbeats silent intervals before a worker goes offline.
	MissedHeartbeats int

	DefaultTaskTimeout time.Duration
	DefaultMaxRetries  int
	MaxQueueSize       int

	// AssignInterval drives the assignment tick and its timeout sweep.
	AssignInterval time.Duration

	Breaker breaker.Config
	Health  health.Config
}

func DefaultConfig() Config {
	return Config{
		RoutingStrategy:    router.LeastLoaded,
		HeartbeatInterval:  30 * time.Second,
		MissedHeartbeats:   3,
		DefaultTaskTimeout: 60 * time.Second,
		DefaultMaxRetries:  2,
		MaxQueueSize:       1000,
		AssignInterval:     time.Second,
		Breaker:            breaker.DefaultConfig(),
		Health:             health.DefaultConfig(),
	}
}

// normalize fills zero values so a partially built Config is usable.
func (c *Config) normalize() {
	if !router.ValidStrategy(c.RoutingStrategy) {
		c.RoutingStrategy = router.LeastLoaded
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MissedHeartbeats <= 0 {
		c.MissedHeartbeats = 3
	}
	if c.DefaultTaskTimeout <= 0 {
		c.DefaultTaskTimeout = 60 * time.Second
	}
	if c.DefaultMaxRetries < 0 {
		c.DefaultMaxRetries = 0
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 1000
	}
	if c.AssignInterval <= 0 {
		c.AssignInterval = time.Second
	}
}
