package reconcile

import (
	"context"
	"math"
	"time"
)

// Backoff is a capped exponential delay sequence.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Jitter     float64
	Max        time.Duration
}

// DefaultBackoff polls at 2s, 4s, 8s, 16s then every 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    2 * time.Second,
		Multiplier: 2,
		Max:        30 * time.Second,
	}
}

func (cfg Backoff) nextDelay(attempt int, rng float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := float64(cfg.Initial)
	if base <= 0 {
		base = float64(2 * time.Second)
	}
	multiplier := cfg.Multiplier
	if multiplier <= 1 {
		multiplier = 2
	}
	delay := base * math.Pow(multiplier, float64(attempt))
	if cfg.Jitter > 0 {
		j := cfg.Jitter
		if j > 1 {
			j = 1
		}
		delay = delay * (1 + (rng*2-1)*j)
	}
	if cfg.Max > 0 && delay > float64(cfg.Max) {
		delay = float64(cfg.Max)
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
