package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// Checkout converts an OPEN cart into a sale.
//
// The cart moves to CHECKING_OUT first, which freezes its lines. If every
// line is covered by stock, one transaction decrements each potion
// (compare-and-set on its version), credits the cart total to gold, closes
// the cart as CHECKED_OUT and appends one SALE/LINE_ITEM entry per line plus
// one SALE/GOLD_CREDIT entry. Otherwise the cart returns to OPEN and nothing
// else changes; an INSUFFICIENT_STOCK error lists every short line.
func (e *Engine) Checkout(ctx context.Context, cartID int64, payment string) (shop.CheckoutResult, error) {
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		cart, err := tx.Cart(ctx, cartID)
		if err != nil {
			return lookup(err, "cart %d", cartID)
		}
		if cart.Status != shop.CartOpen {
			return shop.InvalidStatef("cart %d is %s", cartID, cart.Status)
		}
		items, err := tx.CartItems(ctx, cartID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return shop.Validationf("cart %d is empty", cartID)
		}
		err = tx.TransitionCart(ctx, cartID, shop.CartOpen, shop.CartCheckingOut, e.clock.Now())
		if store.IsVersionConflict(err) {
			return shop.InvalidStatef("cart %d is no longer open", cartID)
		}
		return err
	})
	if err != nil {
		return shop.CheckoutResult{}, err
	}

	res, j, err := e.sell(ctx, cartID, payment)
	if err != nil {
		// Past this point the caller may have given up; the rollback to OPEN
		// must still happen.
		if rbErr := e.reopen(context.WithoutCancel(ctx), cartID); rbErr != nil {
			return shop.CheckoutResult{}, errors.Join(err, rbErr)
		}
		e.log.Info("checkout rolled back", "cart", cartID, "code", shop.CodeOf(err))
		return shop.CheckoutResult{}, err
	}

	e.committed(ctx, j)
	e.invalidateCatalog(ctx)
	return res, nil
}

func (e *Engine) sell(ctx context.Context, cartID int64, payment string) (shop.CheckoutResult, shop.Journal, error) {
	var res shop.CheckoutResult
	var j shop.Journal
	err := e.retry(ctx, "checkout", func() error {
		var items []shop.CartItem
		stock := map[int64]shop.Potion{}
		err := e.store.View(ctx, func(tx *store.Tx) error {
			var err error
			if items, err = tx.CartItems(ctx, cartID); err != nil {
				return err
			}
			for _, it := range items {
				p, err := tx.Potion(ctx, it.PotionID)
				if err != nil {
					return lookup(err, "potion %d", it.PotionID)
				}
				stock[p.ID] = p
			}
			return nil
		})
		if err != nil {
			return err
		}
		e.snapshotDone("checkout")

		var shortages []shop.Shortage
		for _, it := range items {
			if p := stock[it.PotionID]; p.Quantity < it.Quantity {
				shortages = append(shortages, shop.Shortage{
					PotionID:  it.PotionID,
					SKU:       it.SKU,
					Requested: it.Quantity,
					Available: p.Quantity,
				})
			}
		}
		if len(shortages) > 0 {
			return shop.NewInsufficientStock(cartID, shortages)
		}

		potions, gold := shop.Totals(items)
		aggregates := []string{InventoryAggregate}
		entries := make([]shop.LedgerEntry, 0, len(items)+1)
		for _, it := range items {
			aggregates = append(aggregates, PotionAggregate(it.PotionID))
			entries = append(entries, shop.LedgerEntry{
				ChangeType:  shop.ChangeSale,
				SubType:     shop.SubLineItem,
				Amount:      -int64(it.Quantity),
				PotionID:    it.PotionID,
				Description: fmt.Sprintf("cart %d: %d x %s @ %d", cartID, it.Quantity, it.SKU, it.Price),
			})
		}
		entries = append(entries, shop.LedgerEntry{
			ChangeType:  shop.ChangeSale,
			SubType:     shop.SubGoldCredit,
			Amount:      gold,
			Description: fmt.Sprintf("cart %d paid %d gold", cartID, gold),
		})

		now := e.clock.Now()
		return e.store.Update(ctx, func(tx *store.Tx) error {
			if err := ensureWritable(ctx, tx, aggregates...); err != nil {
				return err
			}
			// Lines are ordered by potion id, so concurrent checkouts
			// touch shared potions in the same order.
			for _, it := range items {
				if err := tx.AddPotionQuantity(ctx, it.PotionID, -it.Quantity, stock[it.PotionID].Version); err != nil {
					return err
				}
			}
			if err := tx.CreditGold(ctx, gold); err != nil {
				return err
			}
			if err := tx.FinalizeCart(ctx, cartID, potions, gold, payment, now); err != nil {
				return err
			}
			var err error
			if j, err = e.record(ctx, tx, "checkout", entries); err != nil {
				return err
			}
			res = shop.CheckoutResult{
				CartID:             cartID,
				TxnID:              j.TxnID,
				TotalPotionsBought: potions,
				TotalGoldPaid:      gold,
			}
			return nil
		})
	})
	return res, j, err
}

func (e *Engine) reopen(ctx context.Context, cartID int64) error {
	return e.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.TransitionCart(ctx, cartID, shop.CartCheckingOut, shop.CartOpen, e.clock.Now()); err != nil {
			return fmt.Errorf("reopen cart %d: %w", cartID, err)
		}
		return nil
	})
}
