package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/potionshop/internal/ledger"
	"github.com/roach88/potionshop/internal/shop"
)

func TestInventory_InitAndCAS(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		_, err := tx.Inventory(ctx)
		assert.True(t, IsNotFound(err))
		return nil
	}))

	update(t, s, func(ctx context.Context, tx *Tx) error {
		created, err := tx.InitInventory(ctx, shop.GenesisInventory())
		require.NoError(t, err)
		assert.True(t, created)

		created, err = tx.InitInventory(ctx, shop.GenesisInventory())
		require.NoError(t, err)
		assert.False(t, created)
		return nil
	})

	var inv shop.Inventory
	update(t, s, func(ctx context.Context, tx *Tx) error {
		var err error
		inv, err = tx.Inventory(ctx)
		return err
	})
	assert.Equal(t, int64(100), inv.Gold)
	assert.Equal(t, int64(0), inv.Version)

	stale := inv
	inv.Liquids.Red = 500
	update(t, s, func(ctx context.Context, tx *Tx) error {
		return tx.SaveInventory(ctx, inv)
	})

	err := s.Update(ctx, func(tx *Tx) error { return tx.SaveInventory(ctx, stale) })
	assert.True(t, IsVersionConflict(err))

	update(t, s, func(ctx context.Context, tx *Tx) error {
		return tx.CreditGold(ctx, 25)
	})
	update(t, s, func(ctx context.Context, tx *Tx) error {
		got, err := tx.Inventory(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(125), got.Gold)
		assert.Equal(t, 500, got.Liquids.Red)
		assert.Equal(t, int64(2), got.Version)
		return nil
	})
}

func TestInventory_CheckConstraints(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	update(t, s, func(ctx context.Context, tx *Tx) error {
		_, err := tx.InitInventory(ctx, shop.GenesisInventory())
		return err
	})

	over := shop.GenesisInventory()
	over.Liquids.Dark = shop.LiquidUnitSize + 1
	err := s.Update(ctx, func(tx *Tx) error { return tx.SaveInventory(ctx, over) })
	assert.ErrorContains(t, err, "CHECK constraint failed")
}

func TestPotions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var red shop.Potion
	update(t, s, func(ctx context.Context, tx *Tx) error {
		var err error
		red, err = tx.InsertPotion(ctx, testRecipe("RED"))
		return err
	})
	assert.Equal(t, 100, red.TotalML())
	assert.Equal(t, 0, red.Quantity)

	err := s.Update(ctx, func(tx *Tx) error {
		_, err := tx.InsertPotion(ctx, testRecipe("RED"))
		return err
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	update(t, s, func(ctx context.Context, tx *Tx) error {
		return tx.AddPotionQuantity(ctx, red.ID, 4, red.Version)
	})
	err = s.Update(ctx, func(tx *Tx) error { return tx.AddPotionQuantity(ctx, red.ID, 1, red.Version) })
	assert.True(t, IsVersionConflict(err))

	// Recipes are immutable at the storage layer too.
	_, err = s.DB().Exec(`UPDATE potions SET red_ml = 1 WHERE id = ?`, red.ID)
	assert.ErrorContains(t, err, "immutable")

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		p, err := tx.PotionBySKU(ctx, "RED")
		require.NoError(t, err)
		assert.Equal(t, 4, p.Quantity)
		assert.Equal(t, int64(1), p.Version)

		n, err := tx.PotionCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		_, err = tx.Potion(ctx, 999)
		assert.True(t, IsNotFound(err))
		return nil
	}))
}

func TestCatalogItems_OrderAndLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	update(t, s, func(ctx context.Context, tx *Tx) error {
		for i, sku := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
			p, err := tx.InsertPotion(ctx, testRecipe(sku))
			if err != nil {
				return err
			}
			// H stays at zero.
			if sku != "H" {
				if err := tx.AddPotionQuantity(ctx, p.ID, 1+i%3, p.Version); err != nil {
					return err
				}
			}
		}
		return nil
	})

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		items, err := tx.CatalogItems(ctx, 6)
		require.NoError(t, err)
		skus := make([]string, len(items))
		for i, it := range items {
			skus[i] = it.SKU
		}
		// Quantities: A1 B2 C3 D1 E2 F3 G1.
		assert.Equal(t, []string{"C", "F", "B", "E", "A", "D"}, skus)
		assert.Equal(t, []int{100, 0, 0, 0}, items[0].PotionType)
		return nil
	}))
}

func TestCartItems_MergeKeepsSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	customer := seedCustomer(t, s, "Scaramouche")

	var cart shop.Cart
	var potion shop.Potion
	update(t, s, func(ctx context.Context, tx *Tx) error {
		var err error
		if potion, err = tx.InsertPotion(ctx, testRecipe("RED")); err != nil {
			return err
		}
		if cart, err = tx.InsertCart(ctx, customer, testNow); err != nil {
			return err
		}
		if err := tx.AddCartItem(ctx, cart.ID, potion.ID, 2, 50, testNow); err != nil {
			return err
		}
		return tx.AddCartItem(ctx, cart.ID, potion.ID, 3, 75, testNow)
	})
	assert.Equal(t, shop.CartOpen, cart.Status)

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		items, err := tx.CartItems(ctx, cart.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 5, items[0].Quantity)
		assert.Equal(t, int64(50), items[0].Price)
		assert.Equal(t, "RED", items[0].SKU)
		return nil
	}))

	err := s.Update(ctx, func(tx *Tx) error { return tx.SetCartItemQuantity(ctx, cart.ID, 999, 1) })
	assert.True(t, IsNotFound(err))
	err = s.Update(ctx, func(tx *Tx) error { return tx.DeleteCartItem(ctx, cart.ID, 999) })
	assert.True(t, IsNotFound(err))
}

func TestCart_Transitions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	customer := seedCustomer(t, s, "Ayaka")

	var cart shop.Cart
	update(t, s, func(ctx context.Context, tx *Tx) error {
		var err error
		cart, err = tx.InsertCart(ctx, customer, testNow)
		return err
	})

	update(t, s, func(ctx context.Context, tx *Tx) error {
		return tx.TransitionCart(ctx, cart.ID, shop.CartOpen, shop.CartCheckingOut, testNow)
	})
	err := s.Update(ctx, func(tx *Tx) error {
		return tx.TransitionCart(ctx, cart.ID, shop.CartOpen, shop.CartCheckingOut, testNow)
	})
	assert.True(t, IsVersionConflict(err))

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		ids, err := tx.StaleCartIDs(ctx, shop.CartCheckingOut, testNow)
		require.NoError(t, err)
		assert.Empty(t, ids, "entered at the cutoff, not before it")

		ids, err = tx.StaleCartIDs(ctx, shop.CartCheckingOut, testNow.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, []int64{cart.ID}, ids)
		return nil
	}))

	update(t, s, func(ctx context.Context, tx *Tx) error {
		return tx.FinalizeCart(ctx, cart.ID, 0, 0, "cash", testNow)
	})
	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		got, err := tx.Cart(ctx, cart.ID)
		require.NoError(t, err)
		assert.True(t, got.CheckedOut())
		assert.Equal(t, "cash", got.Payment)
		require.NotNil(t, got.CheckedOutAt)
		assert.True(t, testNow.Equal(*got.CheckedOutAt))
		return nil
	}))
}

func TestLedger_AppendChainsAndIsImmutable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var first, second []shop.LedgerEntry
	update(t, s, func(ctx context.Context, tx *Tx) error {
		var err error
		first, err = tx.AppendLedger(ctx, []shop.LedgerEntry{
			{TxnID: "t1", ChangeType: shop.ChangeGenesis, Amount: 100},
			{TxnID: "t1", ChangeType: shop.ChangeGenesis, CapacityKind: shop.CapacityPotion, Amount: 1},
		}, testNow)
		return err
	})
	update(t, s, func(ctx context.Context, tx *Tx) error {
		var err error
		second, err = tx.AppendLedger(ctx, []shop.LedgerEntry{
			{TxnID: "t2", ChangeType: shop.ChangeLiquidDeposit, LiquidType: shop.Red, Amount: 500},
		}, testNow)
		return err
	})

	assert.Equal(t, int64(1), first[0].Seq)
	assert.Equal(t, "", first[0].PrevHash)
	assert.Equal(t, first[1].Hash, second[0].PrevHash)
	assert.Equal(t, int64(3), second[0].Seq)

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		all, err := tx.LedgerEntries(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, append(first, second...), all)
		require.NoError(t, ledger.VerifyChain(0, "", all))

		page, err := tx.LedgerEntries(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, int64(2), page[0].Seq)

		byTxn, err := tx.LedgerEntriesByTxn(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, first, byTxn)
		none, err := tx.LedgerEntriesByTxn(ctx, "t9")
		require.NoError(t, err)
		assert.Empty(t, none)

		seq, hash, err := tx.LedgerHead(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), seq)
		assert.Equal(t, second[0].Hash, hash)
		return nil
	}))

	_, err := s.DB().Exec(`UPDATE ledger_entries SET amount = 1 WHERE seq = 1`)
	assert.ErrorContains(t, err, "append-only")
	_, err = s.DB().Exec(`DELETE FROM ledger_entries`)
	assert.ErrorContains(t, err, "append-only")
}

func TestLedger_RejectsMultiAccountEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	err := s.Update(ctx, func(tx *Tx) error {
		_, err := tx.AppendLedger(ctx, []shop.LedgerEntry{
			{TxnID: "t", ChangeType: shop.ChangeMix, LiquidType: shop.Red, CapacityKind: shop.CapacityLiquid},
		}, testNow)
		return err
	})
	assert.Error(t, err)
}

func TestCheckpointsAndHalts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	state := shop.NewState()
	state.Gold = 42
	state.Potions[3] = 7

	update(t, s, func(ctx context.Context, tx *Tx) error {
		if err := tx.SaveCheckpoint(ctx, Checkpoint{Seq: 5, Hash: "h5", State: state, CreatedAt: testNow}); err != nil {
			return err
		}
		if err := tx.SaveCheckpoint(ctx, Checkpoint{Seq: 9, Hash: "h9", State: shop.NewState(), CreatedAt: testNow}); err != nil {
			return err
		}
		if err := tx.SetHalt(ctx, "potion:3", "drift", testNow); err != nil {
			return err
		}
		return tx.SetHalt(ctx, "inventory", "drift", testNow)
	})

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		cp, err := tx.Checkpoint(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, state, cp.State)

		latest, err := tx.LatestCheckpoint(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(9), latest.Seq)

		_, err = tx.Checkpoint(ctx, 6)
		assert.True(t, IsNotFound(err))

		halts, err := tx.Halts(ctx)
		require.NoError(t, err)
		require.Len(t, halts, 2)
		assert.Equal(t, "inventory", halts[0].Aggregate)
		return nil
	}))

	update(t, s, func(ctx context.Context, tx *Tx) error {
		return tx.ClearHalt(ctx, "inventory")
	})
	err := s.Update(ctx, func(tx *Tx) error { return tx.ClearHalt(ctx, "inventory") })
	assert.True(t, IsNotFound(err))
}

func TestSearchLineItems(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	alice := seedCustomer(t, s, "Alice")
	bob := seedCustomer(t, s, "Bob")

	update(t, s, func(ctx context.Context, tx *Tx) error {
		red, err := tx.InsertPotion(ctx, testRecipe("RED_POTION"))
		if err != nil {
			return err
		}
		blue, err := tx.InsertPotion(ctx, testRecipe("BLUE_POTION"))
		if err != nil {
			return err
		}
		for i, c := range []int64{alice, bob, alice} {
			cart, err := tx.InsertCart(ctx, c, testNow)
			if err != nil {
				return err
			}
			if err := tx.AddCartItem(ctx, cart.ID, red.ID, i+1, 50, testNow); err != nil {
				return err
			}
			if err := tx.AddCartItem(ctx, cart.ID, blue.ID, 1, 10, testNow); err != nil {
				return err
			}
			if err := tx.TransitionCart(ctx, cart.ID, shop.CartOpen, shop.CartCheckingOut, testNow); err != nil {
				return err
			}
			if err := tx.FinalizeCart(ctx, cart.ID, i+2, int64(50*(i+1)+10), "gold", testNow); err != nil {
				return err
			}
		}
		// An open cart never shows up.
		open, err := tx.InsertCart(ctx, bob, testNow)
		if err != nil {
			return err
		}
		return tx.AddCartItem(ctx, open.ID, red.ID, 9, 50, testNow)
	})

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		all, err := tx.SearchLineItems(ctx, LineItemQuery{Sort: SortLineItemTotal, Desc: true, Limit: 100})
		require.NoError(t, err)
		require.Len(t, all, 6)
		assert.Equal(t, int64(150), all[0].LineItemTotal)
		assert.Equal(t, "Alice", all[0].CustomerName)

		alices, err := tx.SearchLineItems(ctx, LineItemQuery{CustomerName: "ALI", SKU: "red", Limit: 100})
		require.NoError(t, err)
		require.Len(t, alices, 2)
		for _, li := range alices {
			assert.Equal(t, "RED_POTION", li.ItemSKU)
		}

		page, err := tx.SearchLineItems(ctx, LineItemQuery{Sort: SortItemSKU, Offset: 5, Limit: 5})
		require.NoError(t, err)
		assert.Len(t, page, 1)

		_, err = tx.SearchLineItems(ctx, LineItemQuery{Sort: "price", Limit: 5})
		assert.Error(t, err)
		return nil
	}))
}

func TestSearchLineItems_FoldsNonASCIINames(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	aerin := seedCustomer(t, s, "Ærin")
	emile := seedCustomer(t, s, "Émile")

	update(t, s, func(ctx context.Context, tx *Tx) error {
		p, err := tx.InsertPotion(ctx, testRecipe("ÉLIXIR"))
		if err != nil {
			return err
		}
		for _, c := range []int64{aerin, emile} {
			cart, err := tx.InsertCart(ctx, c, testNow)
			if err != nil {
				return err
			}
			if err := tx.AddCartItem(ctx, cart.ID, p.ID, 1, 50, testNow); err != nil {
				return err
			}
			if err := tx.TransitionCart(ctx, cart.ID, shop.CartOpen, shop.CartCheckingOut, testNow); err != nil {
				return err
			}
			if err := tx.FinalizeCart(ctx, cart.ID, 1, 50, "gold", testNow); err != nil {
				return err
			}
		}
		return nil
	})

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		for needle, want := range map[string]string{"æR": "Ærin", "ÆRIN": "Ærin", "émi": "Émile", "ILE": "Émile"} {
			got, err := tx.SearchLineItems(ctx, LineItemQuery{CustomerName: needle, Limit: 10})
			require.NoError(t, err)
			require.Len(t, got, 1, "needle %q", needle)
			assert.Equal(t, want, got[0].CustomerName)
		}

		bySKU, err := tx.SearchLineItems(ctx, LineItemQuery{SKU: "élix", Limit: 10})
		require.NoError(t, err)
		assert.Len(t, bySKU, 2)
		return nil
	}))
}
