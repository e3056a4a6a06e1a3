package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// Aggregates that reconciliation can halt.
const (
	// InventoryAggregate covers gold, liquids and capacity.
	InventoryAggregate = "inventory"

	// LedgerAggregate is halted when the hash chain fails verification.
	LedgerAggregate = "ledger"
)

// PotionAggregate names the stock aggregate of one potion.
func PotionAggregate(id int64) string {
	return shop.PotionAccount(id)
}

// aggregateOf maps a ledger account to the aggregate that owns it.
func aggregateOf(account string) string {
	if strings.HasPrefix(account, "potion:") {
		return account
	}
	return InventoryAggregate
}

// lookup converts store.ErrNotFound into a NOT_FOUND error naming what was
// looked up. Other errors pass through.
func lookup(err error, format string, args ...any) error {
	if store.IsNotFound(err) {
		return shop.NotFoundf(format+" not found", args...)
	}
	return err
}

// ensureWritable fails with INCONSISTENCY if the ledger or any of the given
// aggregates is halted. Must run inside the write transaction.
func ensureWritable(ctx context.Context, tx *store.Tx, aggregates ...string) error {
	halts, err := tx.Halts(ctx)
	if err != nil {
		return err
	}
	for _, h := range halts {
		if h.Aggregate == LedgerAggregate || slices.Contains(aggregates, h.Aggregate) {
			return &shop.Error{
				Code:    shop.CodeInconsistency,
				Message: fmt.Sprintf("%s is halted: %s", h.Aggregate, h.Reason),
				Details: map[string]string{"aggregate": h.Aggregate},
			}
		}
	}
	return nil
}
