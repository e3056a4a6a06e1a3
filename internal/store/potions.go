package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/potionshop/internal/shop"
)

const potionColumns = `id, name, sku, red_ml, green_ml, blue_ml, dark_ml, price, description, current_quantity, version`

type potionRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	SKU         string `db:"sku"`
	Red         int    `db:"red_ml"`
	Green       int    `db:"green_ml"`
	Blue        int    `db:"blue_ml"`
	Dark        int    `db:"dark_ml"`
	Price       int64  `db:"price"`
	Description string `db:"description"`
	Quantity    int    `db:"current_quantity"`
	Version     int64  `db:"version"`
}

func (r potionRow) toShop() shop.Potion {
	return shop.Potion{
		ID:          r.ID,
		Name:        r.Name,
		SKU:         r.SKU,
		Recipe:      shop.Liquids{Red: r.Red, Green: r.Green, Blue: r.Blue, Dark: r.Dark},
		Price:       r.Price,
		Description: r.Description,
		Quantity:    r.Quantity,
		Version:     r.Version,
	}
}

// InsertPotion creates a catalog entry with zero stock.
// Returns ErrDuplicate if the SKU exists.
func (t *Tx) InsertPotion(ctx context.Context, def shop.RecipeDef) (shop.Potion, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO potions (name, sku, red_ml, green_ml, blue_ml, dark_ml, price, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		def.Name,
		def.SKU,
		def.Recipe.Red,
		def.Recipe.Green,
		def.Recipe.Blue,
		def.Recipe.Dark,
		def.Price,
		def.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shop.Potion{}, fmt.Errorf("insert potion %s: %w", def.SKU, ErrDuplicate)
		}
		return shop.Potion{}, fmt.Errorf("insert potion %s: %w", def.SKU, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return shop.Potion{}, fmt.Errorf("insert potion %s: %w", def.SKU, err)
	}
	return t.Potion(ctx, id)
}

// Potion reads one potion by id.
func (t *Tx) Potion(ctx context.Context, id int64) (shop.Potion, error) {
	var row potionRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+potionColumns+` FROM potions WHERE id = ?`, id)
	if err != nil {
		return shop.Potion{}, fmt.Errorf("read potion %d: %w", id, notFound(err))
	}
	return row.toShop(), nil
}

// PotionBySKU reads one potion by SKU.
func (t *Tx) PotionBySKU(ctx context.Context, sku string) (shop.Potion, error) {
	var row potionRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+potionColumns+` FROM potions WHERE sku = ?`, sku)
	if err != nil {
		return shop.Potion{}, fmt.Errorf("read potion %s: %w", sku, notFound(err))
	}
	return row.toShop(), nil
}

// Potions lists the whole catalog ordered by id.
func (t *Tx) Potions(ctx context.Context) ([]shop.Potion, error) {
	var rows []potionRow
	if err := t.tx.SelectContext(ctx, &rows, `SELECT `+potionColumns+` FROM potions ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("list potions: %w", err)
	}
	out := make([]shop.Potion, len(rows))
	for i, r := range rows {
		out[i] = r.toShop()
	}
	return out, nil
}

// PotionCount is Σ current_quantity over the catalog.
func (t *Tx) PotionCount(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.GetContext(ctx, &n, `SELECT COALESCE(SUM(current_quantity), 0) FROM potions`); err != nil {
		return 0, fmt.Errorf("count potions: %w", err)
	}
	return n, nil
}

// AddPotionQuantity applies delta to a potion's stock if it is still at
// version. Returns ErrVersionConflict if the version moved.
func (t *Tx) AddPotionQuantity(ctx context.Context, id int64, delta int, version int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE potions
		SET current_quantity = current_quantity + ?, version = version + 1
		WHERE id = ? AND version = ?
	`, delta, id, version)
	if err != nil {
		return fmt.Errorf("update potion %d: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("update potion %d", id))
}

// CatalogItems lists up to limit potions in stock, most plentiful first.
func (t *Tx) CatalogItems(ctx context.Context, limit int) ([]shop.CatalogItem, error) {
	var rows []potionRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT `+potionColumns+` FROM potions
		WHERE current_quantity > 0
		ORDER BY current_quantity DESC, sku ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	items := make([]shop.CatalogItem, len(rows))
	for i, r := range rows {
		p := r.toShop()
		items[i] = shop.CatalogItem{
			SKU:        p.SKU,
			Name:       p.Name,
			Quantity:   p.Quantity,
			Price:      p.Price,
			PotionType: p.Recipe.Slice(),
		}
	}
	return items, nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsVersionConflict reports whether err wraps ErrVersionConflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
