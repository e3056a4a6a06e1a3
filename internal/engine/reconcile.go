package engine

import (
	"context"
	"fmt"

	"github.com/roach88/potionshop/internal/ledger"
	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// Reconcile replays the ledger and compares the result with live state.
//
// since is 0 to replay from genesis, or the seq of a checkpoint written by an
// earlier clean reconcile, in which case replay starts from that
// checkpoint's state.
//
// A clean run stores a checkpoint at the last replayed seq. Drift halts the
// affected aggregates and returns the report together with an INCONSISTENCY
// error. A broken hash chain halts the whole ledger. Live state is never
// rewritten from the ledger or the other way round.
func (e *Engine) Reconcile(ctx context.Context, since int64) (ledger.Report, error) {
	if since < 0 {
		return ledger.Report{}, shop.Validationf("since must not be negative, got %d", since)
	}

	var report ledger.Report
	var headHash string
	var chainErr error
	err := e.store.View(ctx, func(tx *store.Tx) error {
		base := shop.NewState()
		prevHash := ""
		if since > 0 {
			cp, err := tx.Checkpoint(ctx, since)
			if err != nil {
				return lookup(err, "checkpoint at seq %d", since)
			}
			base, prevHash = cp.State, cp.Hash
		}

		entries, err := tx.LedgerEntries(ctx, since, 0)
		if err != nil {
			return err
		}
		if chainErr = ledger.VerifyChain(since, prevHash, entries); chainErr != nil {
			return nil
		}
		expected, err := ledger.Replay(base, entries)
		if err != nil {
			return err
		}

		inv, err := tx.Inventory(ctx)
		if err != nil {
			return err
		}
		potions, err := tx.Potions(ctx)
		if err != nil {
			return err
		}
		actual := shop.StateOf(inv, potions)

		report = ledger.Report{
			Since:    since,
			Through:  since,
			Entries:  len(entries),
			Expected: expected,
			Actual:   actual,
			Drift:    ledger.Compare(expected, actual),
		}
		headHash = prevHash
		if n := len(entries); n > 0 {
			report.Through = entries[n-1].Seq
			headHash = entries[n-1].Hash
		}
		return nil
	})
	if err != nil {
		return ledger.Report{}, err
	}

	now := e.clock.Now()
	if chainErr != nil {
		e.log.Error("ledger hash chain broken", "since", since, "error", chainErr)
		if err := e.halt(ctx, map[string]string{LedgerAggregate: chainErr.Error()}); err != nil {
			return ledger.Report{}, err
		}
		return ledger.Report{}, shop.NewInconsistency(fmt.Sprintf("ledger hash chain broken: %v", chainErr), nil)
	}

	if !report.Clean() {
		reasons := map[string]string{}
		for _, d := range report.Drift {
			agg := aggregateOf(d.Account)
			if _, ok := reasons[agg]; !ok {
				reasons[agg] = fmt.Sprintf("drift at seq %d: %s expected %d, actual %d", report.Through, d.Account, d.Expected, d.Actual)
			}
			e.log.Error("reconcile drift", "account", d.Account, "expected", d.Expected, "actual", d.Actual, "through", report.Through)
		}
		if err := e.halt(ctx, reasons); err != nil {
			return report, err
		}
		return report, shop.NewInconsistency(fmt.Sprintf("reconcile found drift in %d account(s)", len(report.Drift)), report.Drift)
	}

	if report.Through > since {
		err := e.store.Update(ctx, func(tx *store.Tx) error {
			return tx.SaveCheckpoint(ctx, store.Checkpoint{
				Seq:       report.Through,
				Hash:      headHash,
				State:     report.Expected,
				CreatedAt: now,
			})
		})
		if err != nil {
			return report, err
		}
	}
	e.log.Info("reconcile clean", "since", since, "through", report.Through, "entries", report.Entries)
	return report, nil
}

func (e *Engine) halt(ctx context.Context, reasons map[string]string) error {
	now := e.clock.Now()
	return e.store.Update(ctx, func(tx *store.Tx) error {
		for agg, reason := range reasons {
			if err := tx.SetHalt(ctx, agg, reason, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Halts lists the halted aggregates.
func (e *Engine) Halts(ctx context.Context) ([]store.Halt, error) {
	var halts []store.Halt
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		halts, err = tx.Halts(ctx)
		return err
	})
	return halts, err
}

// ClearHalt lets writes to an aggregate resume. It is an operator action
// taken after the cause of the drift has been dealt with.
func (e *Engine) ClearHalt(ctx context.Context, aggregate string) error {
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		return lookup(tx.ClearHalt(ctx, aggregate), "halt on %s", aggregate)
	})
	if err != nil {
		return err
	}
	e.log.Warn("halt cleared", "aggregate", aggregate)
	return nil
}

// Transaction returns the entries one unit of work committed.
func (e *Engine) Transaction(ctx context.Context, txnID string) ([]shop.LedgerEntry, error) {
	var entries []shop.LedgerEntry
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = tx.LedgerEntriesByTxn(ctx, txnID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, shop.NotFoundf("txn %q not found", txnID)
	}
	return entries, nil
}

// Ledger lists up to limit entries with seq > after. limit <= 0 lists all.
func (e *Engine) Ledger(ctx context.Context, after int64, limit int) ([]shop.LedgerEntry, error) {
	var entries []shop.LedgerEntry
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = tx.LedgerEntries(ctx, after, limit)
		return err
	})
	return entries, err
}
