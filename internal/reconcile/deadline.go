package reconcile

import (
	"context"
	"fmt"
	"time"
)

// pullDeadline bounds each pull of a lazy candidate sequence separately.
// The clock is paused while the consumer handles a candidate, so a slow
// purchase never eats into the budget of the next search.
type pullDeadline struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	timer  *time.Timer
	limit  time.Duration
}

func newPullDeadline(parent context.Context, limit time.Duration) *pullDeadline {
	ctx, cancel := context.WithCancelCause(parent)
	p := &pullDeadline{ctx: ctx, cancel: cancel, limit: limit}
	p.timer = time.AfterFunc(limit, func() {
		cancel(fmt.Errorf("search pull exceeded %s: %w", limit, context.DeadlineExceeded))
	})
	return p
}

// pause stops the clock once a candidate has been yielded.
func (p *pullDeadline) pause() {
	p.timer.Stop()
}

// resume restarts the full budget before the next pull.
func (p *pullDeadline) resume() {
	p.timer.Reset(p.limit)
}

func (p *pullDeadline) stop() {
	p.timer.Stop()
	p.cancel(nil)
}

// wrap attaches the deadline cause to a search error when the pull, not the
// caller, ran out of time.
func (p *pullDeadline) wrap(parent context.Context, err error) error {
	if parent.Err() != nil || p.ctx.Err() == nil {
		return err
	}
	return fmt.Errorf("%w: %w", err, context.Cause(p.ctx))
}
