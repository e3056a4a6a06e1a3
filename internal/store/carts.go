package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/potionshop/internal/shop"
)

type cartRow struct {
	ID                 int64         `db:"id"`
	CustomerID         int64         `db:"customer_id"`
	Status             string        `db:"status"`
	TotalPotionsBought int           `db:"total_potions_bought"`
	TotalGoldPaid      int64         `db:"total_gold_paid"`
	Payment            string        `db:"payment"`
	CreatedAt          int64         `db:"created_at"`
	CheckedOutAt       sql.NullInt64 `db:"checked_out_at"`
}

func (r cartRow) toShop() shop.Cart {
	c := shop.Cart{
		ID:                 r.ID,
		CustomerID:         r.CustomerID,
		Status:             shop.CartStatus(r.Status),
		TotalPotionsBought: r.TotalPotionsBought,
		TotalGoldPaid:      r.TotalGoldPaid,
		Payment:            r.Payment,
		CreatedAt:          fromMicros(r.CreatedAt),
	}
	if r.CheckedOutAt.Valid {
		at := fromMicros(r.CheckedOutAt.Int64)
		c.CheckedOutAt = &at
	}
	return c
}

type cartItemRow struct {
	ID       int64  `db:"id"`
	CartID   int64  `db:"cart_id"`
	PotionID int64  `db:"potion_id"`
	SKU      string `db:"sku"`
	Quantity int    `db:"quantity"`
	Price    int64  `db:"price"`
}

func (r cartItemRow) toShop() shop.CartItem {
	return shop.CartItem{
		ID:       r.ID,
		CartID:   r.CartID,
		PotionID: r.PotionID,
		SKU:      r.SKU,
		Quantity: r.Quantity,
		Price:    r.Price,
	}
}

// InsertCart creates an OPEN cart with zeroed totals.
func (t *Tx) InsertCart(ctx context.Context, customerID int64, at time.Time) (shop.Cart, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO carts (customer_id, status, created_at) VALUES (?, 'OPEN', ?)
	`, customerID, micros(at))
	if err != nil {
		return shop.Cart{}, fmt.Errorf("insert cart: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return shop.Cart{}, fmt.Errorf("insert cart: %w", err)
	}
	return t.Cart(ctx, id)
}

// Cart reads one cart.
func (t *Tx) Cart(ctx context.Context, id int64) (shop.Cart, error) {
	var row cartRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT id, customer_id, status, total_potions_bought, total_gold_paid, payment, created_at, checked_out_at
		FROM carts WHERE id = ?
	`, id)
	if err != nil {
		return shop.Cart{}, fmt.Errorf("read cart %d: %w", id, notFound(err))
	}
	return row.toShop(), nil
}

// TransitionCart moves a cart from one status to another and stamps the
// change with at. Returns ErrVersionConflict if the cart was not in the from
// status.
func (t *Tx) TransitionCart(ctx context.Context, id int64, from, to shop.CartStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE carts SET status = ?, status_changed_at = ? WHERE id = ? AND status = ?
	`, string(to), micros(at), id, string(from))
	if err != nil {
		return fmt.Errorf("transition cart %d: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("transition cart %d %s->%s", id, from, to))
}

// StaleCartIDs lists carts that entered status before the given time,
// ordered by id. Carts with no recorded change time count as stale.
func (t *Tx) StaleCartIDs(ctx context.Context, status shop.CartStatus, before time.Time) ([]int64, error) {
	var ids []int64
	err := t.tx.SelectContext(ctx, &ids, `
		SELECT id FROM carts
		WHERE status = ? AND (status_changed_at IS NULL OR status_changed_at < ?)
		ORDER BY id
	`, string(status), micros(before))
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	return ids, nil
}

// CartItems lists a cart's lines ordered by potion id.
func (t *Tx) CartItems(ctx context.Context, cartID int64) ([]shop.CartItem, error) {
	var rows []cartItemRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT ci.id, ci.cart_id, ci.potion_id, p.sku, ci.quantity, ci.price
		FROM cart_items ci
		JOIN potions p ON p.id = ci.potion_id
		WHERE ci.cart_id = ?
		ORDER BY ci.potion_id ASC
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart %d items: %w", cartID, err)
	}
	items := make([]shop.CartItem, len(rows))
	for i, r := range rows {
		items[i] = r.toShop()
	}
	return items, nil
}

// AddCartItem inserts a line, or adds quantity to the existing line for the
// same potion. An existing line keeps its original price snapshot.
func (t *Tx) AddCartItem(ctx context.Context, cartID, potionID int64, quantity int, price int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, potion_id, quantity, price, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cart_id, potion_id) DO UPDATE SET quantity = quantity + excluded.quantity
	`, cartID, potionID, quantity, price, micros(at))
	if err != nil {
		return fmt.Errorf("add cart %d item %d: %w", cartID, potionID, err)
	}
	return nil
}

// SetCartItemQuantity replaces a line's quantity. Returns ErrNotFound if the
// cart has no line for the potion.
func (t *Tx) SetCartItemQuantity(ctx context.Context, cartID, potionID int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE cart_items SET quantity = ? WHERE cart_id = ? AND potion_id = ?
	`, quantity, cartID, potionID)
	if err != nil {
		return fmt.Errorf("update cart %d item %d: %w", cartID, potionID, err)
	}
	return expectRow(res, fmt.Sprintf("update cart %d item %d", cartID, potionID))
}

// DeleteCartItem removes a line. Returns ErrNotFound if it does not exist.
func (t *Tx) DeleteCartItem(ctx context.Context, cartID, potionID int64) error {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = ? AND potion_id = ?
	`, cartID, potionID)
	if err != nil {
		return fmt.Errorf("delete cart %d item %d: %w", cartID, potionID, err)
	}
	return expectRow(res, fmt.Sprintf("delete cart %d item %d", cartID, potionID))
}

// SetCartTotals stores the running totals of an OPEN cart.
func (t *Tx) SetCartTotals(ctx context.Context, cartID int64, potions int, gold int64) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE carts SET total_potions_bought = ?, total_gold_paid = ? WHERE id = ?
	`, potions, gold, cartID)
	if err != nil {
		return fmt.Errorf("update cart %d totals: %w", cartID, err)
	}
	return nil
}

// FinalizeCart moves a CHECKING_OUT cart to CHECKED_OUT with its final
// totals and payment descriptor.
func (t *Tx) FinalizeCart(ctx context.Context, cartID int64, potions int, gold int64, payment string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE carts
		SET status = 'CHECKED_OUT', total_potions_bought = ?, total_gold_paid = ?,
		    payment = ?, checked_out_at = ?, status_changed_at = ?
		WHERE id = ? AND status = 'CHECKING_OUT'
	`, potions, gold, payment, micros(at), micros(at), cartID)
	if err != nil {
		return fmt.Errorf("finalize cart %d: %w", cartID, err)
	}
	return expectOne(res, fmt.Sprintf("finalize cart %d", cartID))
}

func expectRow(res rowsResult, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
