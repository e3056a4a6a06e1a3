package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/potionshop/internal/shop"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore opens a fresh database under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecipe(sku string) shop.RecipeDef {
	return shop.RecipeDef{
		Name:   sku + " potion",
		SKU:    sku,
		Recipe: shop.Liquids{Red: 100},
		Price:  50,
	}
}

// update runs fn in a transaction and fails the test on error.
func update(t *testing.T, s *Store, fn func(ctx context.Context, tx *Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx *Tx) error { return fn(ctx, tx) }))
}

// seedCustomer records a visit with one customer and returns its id.
func seedCustomer(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	var id int64
	update(t, s, func(ctx context.Context, tx *Tx) error {
		cs, err := tx.RecordVisit(ctx, 1, []shop.Customer{{Name: name, Class: "Wizard", Level: 3}}, testNow)
		if err != nil {
			return err
		}
		id = cs[0].ID
		return nil
	})
	return id
}
