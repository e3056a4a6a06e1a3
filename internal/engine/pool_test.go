package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/potionshop/internal/shop"
)

func TestDepositLiquid_ExactRemainingCapacityFills(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.DepositLiquid(ctx, shop.Red, 4000)
	require.NoError(t, err)

	res, err := e.DepositLiquid(ctx, shop.Red, 6000)
	require.NoError(t, err)
	assert.Equal(t, 6000, res.Accepted)
	assert.Equal(t, 0, res.Overflow)
	assert.Equal(t, shop.LiquidUnitSize, res.Volume)
	assert.Equal(t, shop.LiquidUnitSize, mustInventory(t, e).Liquids.Red)
}

func TestDepositLiquid_OverCapacityIsClamped(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.DepositLiquid(ctx, shop.Dark, shop.LiquidUnitSize+1)
	require.NoError(t, err)
	assert.Equal(t, shop.LiquidUnitSize, res.Accepted)
	assert.Equal(t, 1, res.Overflow)

	inv := mustInventory(t, e)
	assert.Equal(t, shop.LiquidUnitSize, inv.Liquids.Dark)

	entries, err := e.Ledger(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, shop.ChangeLiquidDeposit, entries[0].ChangeType)
	assert.Equal(t, int64(shop.LiquidUnitSize), entries[0].Amount, "only the accepted amount is recorded")
	requireClean(t, e)
}

func TestDepositLiquid_FullPoolWritesNothing(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.DepositLiquid(ctx, shop.Green, shop.LiquidUnitSize)
	require.NoError(t, err)
	before := ledgerLen(t, e)

	res, err := e.DepositLiquid(ctx, shop.Green, 250)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Accepted)
	assert.Equal(t, 250, res.Overflow)
	assert.Empty(t, res.TxnID)
	assert.Equal(t, before, ledgerLen(t, e))
}

func TestDepositLiquid_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.DepositLiquid(ctx, shop.Red, 0)
	assert.True(t, shop.IsValidation(err))

	_, err = e.DepositLiquid(ctx, shop.Red, -5)
	assert.True(t, shop.IsValidation(err))

	_, err = e.DepositLiquid(ctx, shop.LiquidType("purple"), 5)
	assert.True(t, shop.IsValidation(err))

	assert.Equal(t, 3, ledgerLen(t, e))
}

func TestDepositLiquid_AcceptsMixedCaseType(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.DepositLiquid(context.Background(), shop.LiquidType("Blue"), 5)
	require.NoError(t, err)
	assert.Equal(t, shop.Blue, res.Liquid)
}
