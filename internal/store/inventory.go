package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/potionshop/internal/shop"
)

type inventoryRow struct {
	Gold        int64 `db:"gold"`
	Red         int   `db:"red_ml"`
	Green       int   `db:"green_ml"`
	Blue        int   `db:"blue_ml"`
	Dark        int   `db:"dark_ml"`
	PotionUnits int   `db:"potion_units"`
	LiquidUnits int   `db:"liquid_units"`
	Version     int64 `db:"version"`
}

func (r inventoryRow) toShop() shop.Inventory {
	return shop.Inventory{
		Gold:        r.Gold,
		Liquids:     shop.Liquids{Red: r.Red, Green: r.Green, Blue: r.Blue, Dark: r.Dark},
		PotionUnits: r.PotionUnits,
		LiquidUnits: r.LiquidUnits,
		Version:     r.Version,
	}
}

// Inventory reads the singleton pool row. Returns ErrNotFound before the
// shop is initialized.
func (t *Tx) Inventory(ctx context.Context) (shop.Inventory, error) {
	var row inventoryRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT gold, red_ml, green_ml, blue_ml, dark_ml, potion_units, liquid_units, version
		FROM global_inventory WHERE id = 1
	`)
	if err != nil {
		return shop.Inventory{}, fmt.Errorf("read inventory: %w", notFound(err))
	}
	return row.toShop(), nil
}

// InitInventory inserts the pool row if it does not exist yet and reports
// whether it did.
func (t *Tx) InitInventory(ctx context.Context, inv shop.Inventory) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO global_inventory
		(id, gold, red_ml, green_ml, blue_ml, dark_ml, potion_units, liquid_units, version)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.Gold,
		inv.Liquids.Red,
		inv.Liquids.Green,
		inv.Liquids.Blue,
		inv.Liquids.Dark,
		inv.PotionUnits,
		inv.LiquidUnits,
	)
	if err != nil {
		return false, fmt.Errorf("init inventory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("init inventory: %w", err)
	}
	return n == 1, nil
}

// SaveInventory writes inv if the row is still at inv.Version, bumping the
// version. Returns ErrVersionConflict otherwise.
func (t *Tx) SaveInventory(ctx context.Context, inv shop.Inventory) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE global_inventory
		SET gold = ?, red_ml = ?, green_ml = ?, blue_ml = ?, dark_ml = ?,
		    potion_units = ?, liquid_units = ?, version = version + 1
		WHERE id = 1 AND version = ?
	`,
		inv.Gold,
		inv.Liquids.Red,
		inv.Liquids.Green,
		inv.Liquids.Blue,
		inv.Liquids.Dark,
		inv.PotionUnits,
		inv.LiquidUnits,
		inv.Version,
	)
	if err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	return expectOne(res, "save inventory")
}

// CreditGold increments gold without a version check. Increments commute, so
// concurrent sales never conflict with each other; the version still moves so
// that any absolute SaveInventory based on an older read fails its CAS.
func (t *Tx) CreditGold(ctx context.Context, amount int64) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE global_inventory SET gold = gold + ?, version = version + 1 WHERE id = 1
	`, amount)
	if err != nil {
		return fmt.Errorf("credit gold: %w", err)
	}
	return nil
}

func micros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// rowsResult is the subset of sql.Result used by expectOne.
type rowsResult interface {
	RowsAffected() (int64, error)
}

func expectOne(res rowsResult, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrVersionConflict)
	}
	return nil
}
