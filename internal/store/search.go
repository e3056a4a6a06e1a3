package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SortColumn is a whitelisted line-item search sort key.
type SortColumn string

const (
	SortCustomerName  SortColumn = "customer_name"
	SortItemSKU       SortColumn = "item_sku"
	SortLineItemTotal SortColumn = "line_item_total"
	SortTimestamp     SortColumn = "timestamp"
)

var sortExpr = map[SortColumn]string{
	SortCustomerName:  "c.customer_name",
	SortItemSKU:       "p.sku",
	SortLineItemTotal: "ci.line_total",
	SortTimestamp:     "ca.checked_out_at",
}

// ValidSortColumn reports whether col is a known sort key.
func ValidSortColumn(col SortColumn) bool {
	_, ok := sortExpr[col]
	return ok
}

// LineItemQuery filters checked-out cart lines. Empty filters match all.
type LineItemQuery struct {
	CustomerName string
	SKU          string
	Sort         SortColumn
	Desc         bool
	Offset       int
	Limit        int
}

// LineItem is one sold cart line.
type LineItem struct {
	LineItemID    int64     `json:"line_item_id"`
	ItemSKU       string    `json:"item_sku"`
	CustomerName  string    `json:"customer_name"`
	Quantity      int       `json:"quantity"`
	LineItemTotal int64     `json:"line_item_total"`
	Timestamp     time.Time `json:"timestamp"`
}

type lineItemRow struct {
	LineItemID    int64  `db:"line_item_id"`
	ItemSKU       string `db:"item_sku"`
	CustomerName  string `db:"customer_name"`
	Quantity      int    `db:"quantity"`
	LineItemTotal int64  `db:"line_item_total"`
	Timestamp     int64  `db:"ts"`
}

// SearchLineItems returns up to q.Limit lines of checked-out carts starting
// at q.Offset. Name and SKU match case-insensitive substrings, folded the
// same way in SQL and Go.
func (t *Tx) SearchLineItems(ctx context.Context, q LineItemQuery) ([]LineItem, error) {
	sort := q.Sort
	if sort == "" {
		sort = SortTimestamp
	}
	expr, ok := sortExpr[sort]
	if !ok {
		return nil, fmt.Errorf("search line items: unknown sort column %q", sort)
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT ci.id AS line_item_id, p.sku AS item_sku, c.customer_name,
		       ci.quantity, ci.line_total AS line_item_total, ca.checked_out_at AS ts
		FROM cart_items ci
		JOIN carts ca ON ca.id = ci.cart_id
		JOIN customers c ON c.id = ca.customer_id
		JOIN potions p ON p.id = ci.potion_id
		WHERE ca.status = 'CHECKED_OUT'
		  AND (?1 = '' OR instr(fold(c.customer_name), ?1) > 0)
		  AND (?2 = '' OR instr(fold(p.sku), ?2) > 0)
		ORDER BY %s %s, ci.id %s
		LIMIT ?3 OFFSET ?4
	`, expr, dir, dir)

	var rows []lineItemRow
	err := t.tx.SelectContext(ctx, &rows, query,
		strings.ToLower(q.CustomerName),
		strings.ToLower(q.SKU),
		q.Limit,
		q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("search line items: %w", err)
	}

	out := make([]LineItem, len(rows))
	for i, r := range rows {
		out[i] = LineItem{
			LineItemID:    r.LineItemID,
			ItemSKU:       r.ItemSKU,
			CustomerName:  r.CustomerName,
			Quantity:      r.Quantity,
			LineItemTotal: r.LineItemTotal,
			Timestamp:     fromMicros(r.Timestamp),
		}
	}
	return out, nil
}
