package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig contains configuration for exponential backoff reconnection.
type ReconnectConfig struct {
	MaxRetries    int           // Maximum consecutive reconnection attempts (default: 5)
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultReconnectConfig returns default reconnection configuration.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultReconnectConfig.
func (c ReconnectConfig) WithDefaults() ReconnectConfig {
	def := DefaultReconnectConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = def.MaxRetryDelay
	}
	return c
}

// ReconnectState tracks reconnection attempts. Retries is reset by the
// connect function once the feed is healthy again.
type ReconnectState struct {
	Retries    atomic.Int32
	Reconnects atomic.Uint32
}

// Reset clears the consecutive retry counter.
func (s *ReconnectState) Reset() {
	s.Retries.Store(0)
}

// ConnectFunc runs one connection until it fails (non-nil error) or the
// context is cancelled (nil).
type ConnectFunc func(ctx context.Context) error

// RunWithReconnect runs connectFn, retrying failures with exponential
// backoff until it returns nil, the context is cancelled, or MaxRetries
// consecutive failures have occurred.
func RunWithReconnect(
	ctx context.Context,
	connectFn ConnectFunc,
	cfg ReconnectConfig,
	state *ReconnectState,
	log *slog.Logger,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := connectFn(ctx)
		if err == nil {
			state.Reset()
			return nil
		}

		retries := int(state.Retries.Add(1))
		state.Reconnects.Add(1)

		if retries > cfg.MaxRetries {
			return fmt.Errorf("source: max retries exceeded (%d attempts): %w", cfg.MaxRetries, err)
		}

		delay := Backoff(retries, cfg)

		log.Warn("source: retrying connection",
			"error", err,
			"attempt", retries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			log.Info("source: context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// Backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func Backoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return cfg.MaxRetryDelay
	}

	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
