package engine

import (
	"context"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// CreateCart opens an empty cart for an existing customer.
func (e *Engine) CreateCart(ctx context.Context, customerID int64) (shop.Cart, error) {
	var cart shop.Cart
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.Customer(ctx, customerID); err != nil {
			return lookup(err, "customer %d", customerID)
		}
		var err error
		cart, err = tx.InsertCart(ctx, customerID, e.clock.Now())
		return err
	})
	if err != nil {
		return shop.Cart{}, err
	}
	e.log.Info("cart created", "cart", cart.ID, "customer", customerID)
	return cart, nil
}

// Cart reads one cart with its cached totals.
func (e *Engine) Cart(ctx context.Context, cartID int64) (shop.Cart, error) {
	var cart shop.Cart
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		cart, err = tx.Cart(ctx, cartID)
		return lookup(err, "cart %d", cartID)
	})
	return cart, err
}

// AddItem puts quantity of a potion in an OPEN cart at the potion's current
// price. Adding a potion already in the cart sums the quantities and keeps
// the first price snapshot.
func (e *Engine) AddItem(ctx context.Context, cartID, potionID int64, quantity int) (shop.Cart, error) {
	if err := checkQuantity(quantity); err != nil {
		return shop.Cart{}, err
	}
	return e.editCart(ctx, cartID, func(tx *store.Tx) error {
		p, err := tx.Potion(ctx, potionID)
		if err != nil {
			return lookup(err, "potion %d", potionID)
		}
		return tx.AddCartItem(ctx, cartID, potionID, quantity, p.Price, e.clock.Now())
	})
}

// UpdateItem sets the quantity of an existing line. The price snapshot is
// unchanged.
func (e *Engine) UpdateItem(ctx context.Context, cartID, potionID int64, quantity int) (shop.Cart, error) {
	if err := checkQuantity(quantity); err != nil {
		return shop.Cart{}, err
	}
	return e.editCart(ctx, cartID, func(tx *store.Tx) error {
		err := tx.SetCartItemQuantity(ctx, cartID, potionID, quantity)
		return lookup(err, "cart %d line for potion %d", cartID, potionID)
	})
}

// RemoveItem deletes a line from an OPEN cart.
func (e *Engine) RemoveItem(ctx context.Context, cartID, potionID int64) (shop.Cart, error) {
	return e.editCart(ctx, cartID, func(tx *store.Tx) error {
		err := tx.DeleteCartItem(ctx, cartID, potionID)
		return lookup(err, "cart %d line for potion %d", cartID, potionID)
	})
}

// ListItems returns a cart's lines ordered by potion id.
func (e *Engine) ListItems(ctx context.Context, cartID int64) ([]shop.CartItem, error) {
	var items []shop.CartItem
	err := e.store.View(ctx, func(tx *store.Tx) error {
		if _, err := tx.Cart(ctx, cartID); err != nil {
			return lookup(err, "cart %d", cartID)
		}
		var err error
		items, err = tx.CartItems(ctx, cartID)
		return err
	})
	return items, err
}

// checkQuantity rejects line quantities no shop could ever sell.
func checkQuantity(quantity int) error {
	if quantity <= 0 {
		return shop.Validationf("quantity must be positive, got %d", quantity)
	}
	if quantity > shop.MaxPotionCapacity {
		return shop.Validationf("quantity %d exceeds the largest potion capacity %d", quantity, shop.MaxPotionCapacity)
	}
	return nil
}

// editCart runs edit on an OPEN cart and recomputes its totals from the
// resulting lines, all in one transaction.
func (e *Engine) editCart(ctx context.Context, cartID int64, edit func(tx *store.Tx) error) (shop.Cart, error) {
	var cart shop.Cart
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		c, err := tx.Cart(ctx, cartID)
		if err != nil {
			return lookup(err, "cart %d", cartID)
		}
		if c.Status != shop.CartOpen {
			return shop.InvalidStatef("cart %d is %s", cartID, c.Status)
		}
		if err := edit(tx); err != nil {
			return err
		}
		items, err := tx.CartItems(ctx, cartID)
		if err != nil {
			return err
		}
		potions, gold := shop.Totals(items)
		if potions > shop.MaxPotionCapacity {
			return shop.Validationf("cart %d would hold %d potions, more than any shop can store", cartID, potions)
		}
		if err := tx.SetCartTotals(ctx, cartID, potions, gold); err != nil {
			return err
		}
		cart, err = tx.Cart(ctx, cartID)
		return err
	})
	if err != nil {
		return shop.Cart{}, err
	}
	e.log.Debug("cart updated", "cart", cartID, "potions", cart.TotalPotionsBought, "gold", cart.TotalGoldPaid)
	return cart, nil
}
