package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// SearchPageSize is the number of line items per search page.
const SearchPageSize = 5

// SearchQuery filters sold line items. Cursor is empty for the first page,
// otherwise a Previous or Next value from an earlier page.
type SearchQuery struct {
	CustomerName string
	SKU          string
	Sort         store.SortColumn
	// Order is "asc" or "desc"; empty means "desc".
	Order  string
	Cursor string
}

// SearchPage is one page of results.
type SearchPage struct {
	Previous string           `json:"previous"`
	Next     string           `json:"next"`
	Results  []store.LineItem `json:"results"`
}

// SearchLineItems pages through the line items of checked-out carts.
func (e *Engine) SearchLineItems(ctx context.Context, q SearchQuery) (SearchPage, error) {
	sort := q.Sort
	if sort == "" {
		sort = store.SortTimestamp
	}
	if !store.ValidSortColumn(sort) {
		return SearchPage{}, shop.Validationf("unknown sort column %q", sort)
	}
	var desc bool
	switch strings.ToLower(q.Order) {
	case "", "desc":
		desc = true
	case "asc":
	default:
		return SearchPage{}, shop.Validationf("sort order must be asc or desc, got %q", q.Order)
	}
	offset := 0
	if q.Cursor != "" {
		n, err := strconv.Atoi(q.Cursor)
		if err != nil || n < 0 {
			return SearchPage{}, shop.Validationf("invalid search cursor %q", q.Cursor)
		}
		offset = n
	}

	var items []store.LineItem
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		// One extra row tells whether a next page exists.
		items, err = tx.SearchLineItems(ctx, store.LineItemQuery{
			CustomerName: q.CustomerName,
			SKU:          q.SKU,
			Sort:         sort,
			Desc:         desc,
			Offset:       offset,
			Limit:        SearchPageSize + 1,
		})
		return err
	})
	if err != nil {
		return SearchPage{}, err
	}

	page := SearchPage{Results: items}
	if len(items) > SearchPageSize {
		page.Results = items[:SearchPageSize]
		page.Next = strconv.Itoa(offset + SearchPageSize)
	}
	if offset > 0 {
		page.Previous = strconv.Itoa(max(offset-SearchPageSize, 0))
	}
	if page.Results == nil {
		page.Results = []store.LineItem{}
	}
	return page, nil
}
