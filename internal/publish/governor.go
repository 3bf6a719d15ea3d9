package publish

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Governor paces publishes so the job stays under the remote service's hourly
// ceiling: a step-function delay that widens as the successful-post count
// approaches the ceiling, backed by a token bucket sized to the ceiling as a
// hard rolling-hour backstop.
type Governor struct {
	cfg     Config
	limiter *rate.Limiter
}

func NewGovernor(cfg Config) *Governor {
	cfg = cfg.withDefaults()
	// Burst equals the ceiling so the bucket never interferes with the step
	// delays until a full hour's budget has been spent.
	lim := rate.NewLimiter(rate.Limit(cfg.HourlyCeiling)/3600, cfg.HourlyCeiling)
	return &Governor{cfg: cfg, limiter: lim}
}

// Delay returns the pacing wait for the next item given how many posts this
// run has already published. Non-decreasing in postedCount.
func (g *Governor) Delay(postedCount int) time.Duration {
	switch {
	case postedCount >= g.cfg.Tier3At:
		return g.cfg.Tier3Delay
	case postedCount >= g.cfg.Tier2At:
		return g.cfg.Tier2Delay
	default:
		return g.cfg.BaseDelay
	}
}

// Pace blocks for the pacing delay, interruptible by ctx. It is called after
// a successful publish and before the next item; the driver skips it after
// the final item.
func (g *Governor) Pace(ctx context.Context, postedCount int) error {
	if err := sleepCtx(ctx, g.Delay(postedCount)); err != nil {
		return err
	}
	return nil
}

// Reserve consumes one slot from the hourly bucket before an insert attempt,
// waiting if the rolling-hour budget is spent.
func (g *Governor) Reserve(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// sleepCtx waits d, or returns ctx.Err() if cancelled first. The timer is
// drained on the cancel path.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		if !t.Stop() {
			<-t.C
		}
		return ctx.Err()
	}
}
