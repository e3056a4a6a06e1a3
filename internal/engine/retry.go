package engine

import (
	"context"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// DefaultRetryBudget is the number of attempts an operation gets before a
// version conflict is reported as BUSY.
const DefaultRetryBudget = 5

// retry runs attempt until it returns something other than a version
// conflict, or until the budget is spent.
//
// Each attempt must re-read everything it depends on; state from a failed
// attempt is stale by definition.
func (e *Engine) retry(ctx context.Context, op string, attempt func() error) error {
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt()
		if !store.IsVersionConflict(err) {
			return err
		}
		if n >= e.retryBudget {
			e.log.Warn("retry budget exhausted", "op", op, "attempts", n)
			return shop.NewBusy(op, n)
		}
		e.log.Debug("version conflict, retrying", "op", op, "attempt", n)
	}
}

// snapshotDone runs the test hook between snapshot and commit.
func (e *Engine) snapshotDone(op string) {
	if e.afterSnapshot != nil {
		e.afterSnapshot(op)
	}
}
