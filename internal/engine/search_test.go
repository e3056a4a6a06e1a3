package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

func seedSales(t *testing.T, e *Engine, s *store.Store) (red, blue shop.Potion) {
	t.Helper()
	ctx := context.Background()
	red = defineRecipe(t, e, "RED-1", shop.Liquids{Red: 10}, 10)
	blue = defineRecipe(t, e, "BLUE-1", shop.Liquids{Blue: 10}, 20)
	stock(t, e, red, 10)
	stock(t, e, blue, 10)

	for i, name := range []string{"Aria", "Borin", "Aria", "Cyra", "Dax", "Aria", "Borin"} {
		cust := seedCustomer(t, s, name)
		cart, err := e.CreateCart(ctx, cust)
		require.NoError(t, err)
		potion := red
		if i%2 == 1 {
			potion = blue
		}
		_, err = e.AddItem(ctx, cart.ID, potion.ID, 1)
		require.NoError(t, err)
		_, err = e.Checkout(ctx, cart.ID, "gold")
		require.NoError(t, err)
	}

	// Open carts never show up in search.
	cart, err := e.CreateCart(ctx, seedCustomer(t, s, "Aria"))
	require.NoError(t, err)
	_, err = e.AddItem(ctx, cart.ID, red.ID, 1)
	require.NoError(t, err)
	return red, blue
}

func TestSearchLineItems_Pages(t *testing.T) {
	e, s := newTestEngine(t)
	seedSales(t, e, s)
	ctx := context.Background()

	page, err := e.SearchLineItems(ctx, SearchQuery{})
	require.NoError(t, err)
	require.Len(t, page.Results, SearchPageSize)
	assert.Empty(t, page.Previous)
	assert.Equal(t, "5", page.Next)
	// Newest first by default.
	assert.Equal(t, "Borin", page.Results[0].CustomerName)
	assert.True(t, !page.Results[0].Timestamp.Before(page.Results[1].Timestamp))

	page, err = e.SearchLineItems(ctx, SearchQuery{Cursor: page.Next})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "0", page.Previous)
	assert.Empty(t, page.Next)
}

func TestSearchLineItems_Filters(t *testing.T) {
	e, s := newTestEngine(t)
	seedSales(t, e, s)
	ctx := context.Background()

	page, err := e.SearchLineItems(ctx, SearchQuery{CustomerName: "aRi", Sort: store.SortItemSKU, Order: "asc"})
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	assert.Equal(t, "BLUE-1", page.Results[0].ItemSKU)
	assert.Equal(t, int64(20), page.Results[0].LineItemTotal)
	assert.Equal(t, "RED-1", page.Results[1].ItemSKU)
	assert.Equal(t, "RED-1", page.Results[2].ItemSKU)
	for _, it := range page.Results {
		assert.Equal(t, "Aria", it.CustomerName)
		assert.Equal(t, 1, it.Quantity)
	}

	page, err = e.SearchLineItems(ctx, SearchQuery{SKU: "blue", Sort: store.SortCustomerName, Order: "asc"})
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	assert.Equal(t, []string{"Aria", "Borin", "Cyra"}, []string{
		page.Results[0].CustomerName, page.Results[1].CustomerName, page.Results[2].CustomerName,
	})
}

func TestSearchLineItems_Rejects(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.SearchLineItems(ctx, SearchQuery{Sort: "price; DROP TABLE carts"})
	assert.True(t, shop.IsValidation(err))

	_, err = e.SearchLineItems(ctx, SearchQuery{Order: "sideways"})
	assert.True(t, shop.IsValidation(err))

	_, err = e.SearchLineItems(ctx, SearchQuery{Cursor: "-5"})
	assert.True(t, shop.IsValidation(err))

	page, err := e.SearchLineItems(ctx, SearchQuery{})
	require.NoError(t, err)
	assert.NotNil(t, page.Results)
	assert.Empty(t, page.Results)
}
