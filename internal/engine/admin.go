package engine

import (
	"context"
	"fmt"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// Reset returns gold, liquids, capacity and potion stock to genesis values.
//
// The ledger is never truncated: Reset appends one ADMIN_RESET entry per
// account that moves, so replay still matches live state. Recipes, carts and
// sales history are kept. Reset is refused while any aggregate is halted.
// A shop already at genesis values writes nothing and returns an empty
// journal.
func (e *Engine) Reset(ctx context.Context) (shop.Journal, error) {
	var j shop.Journal
	err := e.retry(ctx, "reset", func() error {
		var inv shop.Inventory
		var potions []shop.Potion
		err := e.store.View(ctx, func(tx *store.Tx) error {
			var err error
			if inv, err = tx.Inventory(ctx); err != nil {
				return err
			}
			potions, err = tx.Potions(ctx)
			return err
		})
		if err != nil {
			return err
		}
		e.snapshotDone("reset")

		target := shop.GenesisInventory()
		target.Version = inv.Version
		entries := resetEntries(inv, target, potions)
		if len(entries) == 0 {
			j = shop.Journal{}
			return nil
		}

		return e.store.Update(ctx, func(tx *store.Tx) error {
			halts, err := tx.Halts(ctx)
			if err != nil {
				return err
			}
			if len(halts) > 0 {
				return ensureWritable(ctx, tx, halts[0].Aggregate)
			}
			if err := tx.SaveInventory(ctx, target); err != nil {
				return err
			}
			for _, p := range potions {
				if p.Quantity == 0 {
					continue
				}
				if err := tx.AddPotionQuantity(ctx, p.ID, -p.Quantity, p.Version); err != nil {
					return err
				}
			}
			j, err = e.record(ctx, tx, "reset", entries)
			return err
		})
	})
	if err != nil {
		return shop.Journal{}, err
	}
	if j.TxnID == "" {
		e.log.Info("reset: shop already at genesis values")
		return j, nil
	}

	e.log.Warn("shop reset to genesis values", "txn", j.TxnID, "entries", len(j.Entries))
	e.committed(ctx, j)
	e.invalidateCatalog(ctx)
	return j, nil
}

// resetEntries lists the compensating entries that move from to target.
func resetEntries(from, target shop.Inventory, potions []shop.Potion) []shop.LedgerEntry {
	var entries []shop.LedgerEntry
	add := func(amount int64, e shop.LedgerEntry) {
		if amount == 0 {
			return
		}
		e.ChangeType = shop.ChangeAdminReset
		e.Amount = amount
		entries = append(entries, e)
	}

	add(target.Gold-from.Gold, shop.LedgerEntry{Description: "reset gold"})
	for _, lt := range shop.CanonicalLiquidOrder {
		add(int64(target.Liquids.Get(lt)-from.Liquids.Get(lt)), shop.LedgerEntry{
			LiquidType:  lt,
			Description: fmt.Sprintf("reset %s liquid", lt),
		})
	}
	add(int64(target.PotionUnits-from.PotionUnits), shop.LedgerEntry{
		CapacityKind: shop.CapacityPotion,
		Description:  "reset potion capacity",
	})
	add(int64(target.LiquidUnits-from.LiquidUnits), shop.LedgerEntry{
		CapacityKind: shop.CapacityLiquid,
		Description:  "reset liquid capacity",
	})
	for _, p := range potions {
		add(-int64(p.Quantity), shop.LedgerEntry{
			PotionID:    p.ID,
			Description: fmt.Sprintf("reset %s stock", p.SKU),
		})
	}
	return entries
}
