package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
	"github.com/roach88/potionshop/internal/testutil"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testOptions(opts ...Option) []Option {
	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithTxnIDGenerator(testutil.NewSequentialGenerator("")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return append(base, opts...)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	s := setupTestStore(t)
	e, err := Open(context.Background(), s, testOptions(opts...)...)
	require.NoError(t, err)
	return e, s
}

// seedCustomer registers a customer the way the visit collaborator does.
func seedCustomer(t *testing.T, s *store.Store, name string) int64 {
	t.Helper()
	var id int64
	err := s.Update(context.Background(), func(tx *store.Tx) error {
		cs, err := tx.RecordVisit(context.Background(), 1, []shop.Customer{{Name: name, Class: "Bard", Level: 2}}, testutil.Epoch)
		if err != nil {
			return err
		}
		id = cs[0].ID
		return nil
	})
	require.NoError(t, err)
	return id
}

func defineRecipe(t *testing.T, e *Engine, sku string, recipe shop.Liquids, price int64) shop.Potion {
	t.Helper()
	p, err := e.DefineRecipe(context.Background(), shop.RecipeDef{
		Name:   sku + " potion",
		SKU:    sku,
		Recipe: recipe,
		Price:  price,
	})
	require.NoError(t, err)
	return p
}

// stock deposits exactly the liquids needed and mixes n batches of p.
func stock(t *testing.T, e *Engine, p shop.Potion, n int) {
	t.Helper()
	ctx := context.Background()
	need := p.Recipe.Scale(n)
	for _, lt := range shop.LiquidTypes {
		if v := need.Get(lt); v > 0 {
			res, err := e.DepositLiquid(ctx, lt, v)
			require.NoError(t, err)
			require.Equal(t, v, res.Accepted, "pool too full to stock %s", p.SKU)
		}
	}
	_, err := e.MixPotion(ctx, p.ID, n)
	require.NoError(t, err)
}

// cartWith opens a cart for a fresh customer and adds the given lines.
func cartWith(t *testing.T, e *Engine, s *store.Store, lines map[int64]int) shop.Cart {
	t.Helper()
	ctx := context.Background()
	cart, err := e.CreateCart(ctx, seedCustomer(t, s, "Tester"))
	require.NoError(t, err)
	for potionID, qty := range lines {
		cart, err = e.AddItem(ctx, cart.ID, potionID, qty)
		require.NoError(t, err)
	}
	return cart
}

func requireClean(t *testing.T, e *Engine) {
	t.Helper()
	report, err := e.Reconcile(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, report.Clean(), "drift: %+v", report.Drift)
}

func mustInventory(t *testing.T, e *Engine) shop.Inventory {
	t.Helper()
	inv, err := e.Inventory(context.Background())
	require.NoError(t, err)
	return inv
}

func ledgerLen(t *testing.T, e *Engine) int {
	t.Helper()
	entries, err := e.Ledger(context.Background(), 0, 0)
	require.NoError(t, err)
	return len(entries)
}

// bumpVersion simulates a competing writer by moving a row's version.
func bumpVersion(t *testing.T, s *store.Store, table string, id int64) {
	t.Helper()
	_, err := s.DB().Exec(`UPDATE `+table+` SET version = version + 1 WHERE id = ?`, id)
	require.NoError(t, err)
}
