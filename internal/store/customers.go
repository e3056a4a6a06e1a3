package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/potionshop/internal/shop"
)

type customerRow struct {
	ID      int64  `db:"id"`
	VisitID int64  `db:"visit_id"`
	Name    string `db:"customer_name"`
	Class   string `db:"character_class"`
	Level   int    `db:"level"`
}

// RecordVisit stores a visit and the customers that arrived with it. The
// visit id is supplied by the caller; recording the same visit twice adds
// the new customers to it.
func (t *Tx) RecordVisit(ctx context.Context, visitID int64, customers []shop.Customer, at time.Time) ([]shop.Customer, error) {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO visits (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING
	`, visitID, micros(at))
	if err != nil {
		return nil, fmt.Errorf("record visit %d: %w", visitID, err)
	}

	out := make([]shop.Customer, 0, len(customers))
	for _, c := range customers {
		res, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO customers (visit_id, customer_name, character_class, level)
			VALUES (:visit_id, :customer_name, :character_class, :level)
		`, customerRow{VisitID: visitID, Name: c.Name, Class: c.Class, Level: c.Level})
		if err != nil {
			return nil, fmt.Errorf("record visit %d customer %q: %w", visitID, c.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("record visit %d: %w", visitID, err)
		}
		c.ID = id
		c.VisitID = visitID
		out = append(out, c)
	}
	return out, nil
}

// Customer reads one customer.
func (t *Tx) Customer(ctx context.Context, id int64) (shop.Customer, error) {
	var row customerRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT id, visit_id, customer_name, character_class, level FROM customers WHERE id = ?
	`, id)
	if err != nil {
		return shop.Customer{}, fmt.Errorf("read customer %d: %w", id, notFound(err))
	}
	return shop.Customer{ID: row.ID, VisitID: row.VisitID, Name: row.Name, Class: row.Class, Level: row.Level}, nil
}
