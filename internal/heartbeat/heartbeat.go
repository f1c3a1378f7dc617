// File: internal/heartbeat/heartbeat.go
// Package heartbeat keeps the adb control channel from going stale by
// pinging the device on a fixed interval. Failed pings are logged and
// retried on the next tick; the daemon never dies over a flaky cable.
package heartbeat

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pinger is the slice of the device transport the heartbeat needs.
type Pinger interface {
	DevicePing(ctx context.Context) error
}

// Heartbeat pings the device until its context is cancelled.
type Heartbeat struct {
	pinger   Pinger
	interval time.Duration
	log      *zap.Logger
}

// New builds a heartbeat. A non-positive interval gets the 30s default.
func New(pinger Pinger, interval time.Duration, logger *zap.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Heartbeat{
		pinger:   pinger,
		interval: interval,
		log:      logger.Named("heartbeat"),
	}
}

// Run pings immediately, then on every interval tick, until ctx is
// cancelled.
func (h *Heartbeat) Run(ctx context.Context) error {
	h.log.Info("Heartbeat started", zap.Duration("interval", h.interval))

	h.ping(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Heartbeat stopped")
			return ctx.Err()
		case <-ticker.C:
			h.ping(ctx)
		}
	}
}

func (h *Heartbeat) ping(ctx context.Context) {
	if err := h.pinger.DevicePing(ctx); err != nil && ctx.Err() == nil {
		h.log.Warn("Device ping failed", zap.Error(err))
	}
}
