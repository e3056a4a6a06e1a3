package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/potionshop/internal/policy"
	"github.com/roach88/potionshop/internal/shop"
)

// refused reports whether err is an ordinary business refusal rather than a
// fault in the engine.
func refused(err error) bool {
	switch shop.CodeOf(err) {
	case shop.CodeValidation, shop.CodeNotFound, shop.CodeInsufficientResource,
		shop.CodeInsufficientStock, shop.CodeInsufficientGold,
		shop.CodeCapacityExceeded, shop.CodeInvalidState:
		return true
	}
	return false
}

func requireBounded(t *testing.T, e *Engine, step int, op string) {
	t.Helper()
	inv := mustInventory(t, e)
	require.GreaterOrEqual(t, inv.Gold, int64(0), "step %d %s: gold", step, op)
	require.LessOrEqual(t, inv.PotionUnits, shop.MaxCapacityUnits, "step %d %s", step, op)
	require.LessOrEqual(t, inv.LiquidUnits, shop.MaxCapacityUnits, "step %d %s", step, op)
	for _, lt := range shop.LiquidTypes {
		v := inv.Liquids.Get(lt)
		require.GreaterOrEqual(t, v, 0, "step %d %s: %s", step, op, lt)
		require.LessOrEqual(t, v, inv.LiquidCapacity(), "step %d %s: %s", step, op, lt)
	}

	potions, err := e.Potions(context.Background())
	require.NoError(t, err)
	total := 0
	for _, p := range potions {
		require.GreaterOrEqual(t, p.Quantity, 0, "step %d %s: %s", step, op, p.SKU)
		total += p.Quantity
	}
	require.LessOrEqual(t, total, inv.PotionCapacity(), "step %d %s: potions", step, op)
}

func TestRandomOperations_KeepShopConsistent(t *testing.T) {
	for _, seed := range []uint64{1, 7, 42} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			runRandomOperations(t, seed, 120)
		})
	}
}

func runRandomOperations(t *testing.T, seed uint64, steps int) {
	e, s := newTestEngine(t, WithPricing(policy.Policy{
		Potion: policy.Curve{Base: 40, Step: 10},
		Liquid: policy.Curve{Base: 60, Step: 15},
	}))
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))

	catalog := []shop.Potion{
		defineRecipe(t, e, "RED", shop.Liquids{Red: 100}, 45),
		defineRecipe(t, e, "RG", shop.Liquids{Red: 50, Green: 50}, 60),
		defineRecipe(t, e, "BD", shop.Liquids{Blue: 30, Dark: 70}, 80),
	}
	customer := seedCustomer(t, s, "Wanderer")
	var open []int64

	pick := func() shop.Potion { return catalog[rng.IntN(len(catalog))] }

	for step := range steps {
		var op string
		var err error
		switch rng.IntN(7) {
		case 0, 1:
			lt := shop.LiquidTypes[rng.IntN(len(shop.LiquidTypes))]
			op = "deposit " + string(lt)
			_, err = e.DepositLiquid(ctx, lt, 1+rng.IntN(15000))
		case 2:
			p := pick()
			op = "mix " + p.SKU
			_, err = e.MixPotion(ctx, p.ID, 1+rng.IntN(40))
		case 3:
			op = "create cart"
			var cart shop.Cart
			cart, err = e.CreateCart(ctx, customer)
			if err == nil {
				open = append(open, cart.ID)
			}
		case 4:
			if len(open) == 0 {
				continue
			}
			p := pick()
			op = "add " + p.SKU
			cartID := open[rng.IntN(len(open))]
			if rng.IntN(4) == 0 {
				op = "remove " + p.SKU
				_, err = e.RemoveItem(ctx, cartID, p.ID)
			} else {
				_, err = e.AddItem(ctx, cartID, p.ID, 1+rng.IntN(12))
			}
		case 5:
			if len(open) == 0 {
				continue
			}
			i := rng.IntN(len(open))
			op = "checkout"
			var res shop.CheckoutResult
			res, err = e.Checkout(ctx, open[i], "gold")
			if err == nil {
				require.GreaterOrEqual(t, res.TotalGoldPaid, int64(0))
				open = append(open[:i], open[i+1:]...)
			}
		case 6:
			kind := shop.CapacityPotion
			if rng.IntN(2) == 0 {
				kind = shop.CapacityLiquid
			}
			op = "upgrade " + string(kind)
			_, err = e.UpgradeCapacity(ctx, kind, 1+rng.IntN(3))
		}
		if err != nil {
			require.True(t, refused(err), "step %d %s: %v", step, op, err)
		}
		requireBounded(t, e, step, op)
		requireClean(t, e)
	}
}
