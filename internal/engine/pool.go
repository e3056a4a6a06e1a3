package engine

import (
	"context"
	"fmt"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// DepositResult reports how much of a deposit the pool accepted.
type DepositResult struct {
	Liquid    shop.LiquidType `json:"liquid"`
	Requested int             `json:"requested"`
	Accepted  int             `json:"accepted"`
	// Overflow was not stored. Refunding it is the caller's business.
	Overflow int    `json:"overflow"`
	Volume   int    `json:"volume"`
	TxnID    string `json:"txn_id,omitempty"`
}

// DepositLiquid adds up to amount ml of lt to the pool, clamped to the
// remaining liquid capacity. A LIQUID_DEPOSIT entry records the accepted
// amount; a deposit into a full pool writes nothing.
func (e *Engine) DepositLiquid(ctx context.Context, lt shop.LiquidType, amount int) (DepositResult, error) {
	lt, err := shop.ParseLiquidType(string(lt))
	if err != nil {
		return DepositResult{}, err
	}
	if amount <= 0 {
		return DepositResult{}, shop.Validationf("deposit amount must be positive, got %d", amount)
	}

	var res DepositResult
	var j shop.Journal
	err = e.retry(ctx, "deposit", func() error {
		inv, err := e.inventorySnapshot(ctx)
		if err != nil {
			return err
		}
		e.snapshotDone("deposit")

		accepted, overflow, err := inv.Deposit(lt, amount)
		if err != nil {
			return err
		}
		res = DepositResult{
			Liquid:    lt,
			Requested: amount,
			Accepted:  accepted,
			Overflow:  overflow,
			Volume:    inv.Liquids.Get(lt),
		}
		if accepted == 0 {
			return nil
		}

		return e.store.Update(ctx, func(tx *store.Tx) error {
			if err := ensureWritable(ctx, tx, InventoryAggregate); err != nil {
				return err
			}
			if err := tx.SaveInventory(ctx, inv); err != nil {
				return err
			}
			j, err = e.record(ctx, tx, "deposit", []shop.LedgerEntry{{
				ChangeType:  shop.ChangeLiquidDeposit,
				Amount:      int64(accepted),
				LiquidType:  lt,
				Description: fmt.Sprintf("deposit %d ml %s", accepted, lt),
			}})
			return err
		})
	})
	if err != nil {
		return DepositResult{}, err
	}

	if overflow := res.Overflow; overflow > 0 {
		e.log.Info("deposit clamped to capacity", "liquid", lt, "accepted", res.Accepted, "overflow", overflow)
	}
	if j.TxnID != "" {
		res.TxnID = j.TxnID
		e.committed(ctx, j)
	}
	return res, nil
}

func (e *Engine) inventorySnapshot(ctx context.Context) (shop.Inventory, error) {
	var inv shop.Inventory
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		inv, err = tx.Inventory(ctx)
		return err
	})
	return inv, err
}
