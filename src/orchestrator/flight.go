package orchestrator

import (
	"context"
	"time"

	"market-data-hub/src/utils"
)

// shared runs fn once per key for all concurrent callers. The fetch runs on a
// context detached from the caller that started it, bounded by the fetch
// timeout and the orchestrator's lifetime, so one caller giving up does not
// fail the others. Each caller still returns as soon as its own ctx is done.
func (o *Orchestrator) shared(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, bool, error) {
	ch := o.flight.DoChan(key, func() (any, error) {
		fctx, cancel := o.detached(ctx)
		defer cancel()
		return fn(fctx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// detached keeps the values of ctx but none of its cancellation.
func (o *Orchestrator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(o.Config.Orchestrator.FetchTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = utils.DefaultFetchTimeout
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	stop := context.AfterFunc(o.lifetime(), cancel)
	return fctx, func() {
		stop()
		cancel()
	}
}
