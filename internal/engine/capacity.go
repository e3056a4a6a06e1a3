package engine

import (
	"context"
	"fmt"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// UpgradeResult describes a committed capacity purchase.
type UpgradeResult struct {
	Kind  shop.CapacityKind `json:"kind"`
	Units int               `json:"units"`
	Cost  int64             `json:"cost"`
	// Total is the capacity units of Kind after the upgrade.
	Total int    `json:"total"`
	Gold  int64  `json:"gold"`
	TxnID string `json:"txn_id"`
}

// UpgradeCapacity buys units of potion or liquid storage. The price comes
// from the configured Pricing at the current capacity; the gold debit and
// the capacity increment commit together.
func (e *Engine) UpgradeCapacity(ctx context.Context, kind shop.CapacityKind, units int) (UpgradeResult, error) {
	kind, err := shop.ParseCapacityKind(string(kind))
	if err != nil {
		return UpgradeResult{}, err
	}
	if units <= 0 {
		return UpgradeResult{}, shop.Validationf("upgrade units must be positive, got %d", units)
	}

	var res UpgradeResult
	var j shop.Journal
	err = e.retry(ctx, "upgrade", func() error {
		inv, err := e.inventorySnapshot(ctx)
		if err != nil {
			return err
		}
		e.snapshotDone("upgrade")

		if units > shop.MaxCapacityUnits-inv.Units(kind) {
			return shop.Validationf("%s capacity is limited to %d units, %d owned", kind, shop.MaxCapacityUnits, inv.Units(kind))
		}
		cost := e.pricing.Cost(kind, inv.Units(kind), units)
		if err := inv.DebitGold(cost); err != nil {
			return err
		}
		inv.AddUnits(kind, units)

		err = e.store.Update(ctx, func(tx *store.Tx) error {
			if err := ensureWritable(ctx, tx, InventoryAggregate); err != nil {
				return err
			}
			if err := tx.SaveInventory(ctx, inv); err != nil {
				return err
			}
			var err error
			j, err = e.record(ctx, tx, "upgrade", []shop.LedgerEntry{
				{
					ChangeType:   shop.ChangeCapacityUpgrade,
					SubType:      shop.SubCapacity,
					Amount:       int64(units),
					CapacityKind: kind,
					Description:  fmt.Sprintf("buy %d %s capacity unit(s)", units, kind),
				},
				{
					ChangeType:  shop.ChangeCapacityUpgrade,
					SubType:     shop.SubGoldDebit,
					Amount:      -cost,
					Description: fmt.Sprintf("pay %d gold for %s capacity", cost, kind),
				},
			})
			return err
		})
		if err != nil {
			return err
		}
		res = UpgradeResult{
			Kind:  kind,
			Units: units,
			Cost:  cost,
			Total: inv.Units(kind),
			Gold:  inv.Gold,
			TxnID: j.TxnID,
		}
		return nil
	})
	if err != nil {
		return UpgradeResult{}, err
	}

	e.committed(ctx, j)
	return res, nil
}
