package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/potionshop/internal/ledger"
	"github.com/roach88/potionshop/internal/shop"
)

type ledgerRow struct {
	Seq          int64          `db:"seq"`
	TxnID        string         `db:"txn_id"`
	ChangeType   string         `db:"change_type"`
	SubType      string         `db:"sub_type"`
	Amount       int64          `db:"amount"`
	LiquidType   sql.NullString `db:"liquid_type"`
	PotionID     sql.NullInt64  `db:"potion_id"`
	CapacityKind sql.NullString `db:"capacity_kind"`
	Description  string         `db:"description"`
	CreatedAt    int64          `db:"created_at"`
	PrevHash     string         `db:"prev_hash"`
	Hash         string         `db:"hash"`
}

func (r ledgerRow) toShop() shop.LedgerEntry {
	return shop.LedgerEntry{
		Seq:          r.Seq,
		TxnID:        r.TxnID,
		ChangeType:   shop.ChangeType(r.ChangeType),
		SubType:      shop.SubType(r.SubType),
		Amount:       r.Amount,
		LiquidType:   shop.LiquidType(r.LiquidType.String),
		PotionID:     r.PotionID.Int64,
		CapacityKind: shop.CapacityKind(r.CapacityKind.String),
		Description:  r.Description,
		CreatedAt:    fromMicros(r.CreatedAt),
		PrevHash:     r.PrevHash,
		Hash:         r.Hash,
	}
}

func fromShopEntry(e shop.LedgerEntry) ledgerRow {
	return ledgerRow{
		Seq:          e.Seq,
		TxnID:        e.TxnID,
		ChangeType:   string(e.ChangeType),
		SubType:      string(e.SubType),
		Amount:       e.Amount,
		LiquidType:   sql.NullString{String: string(e.LiquidType), Valid: e.LiquidType != ""},
		PotionID:     sql.NullInt64{Int64: e.PotionID, Valid: e.PotionID != 0},
		CapacityKind: sql.NullString{String: string(e.CapacityKind), Valid: e.CapacityKind != ""},
		Description:  e.Description,
		CreatedAt:    micros(e.CreatedAt),
		PrevHash:     e.PrevHash,
		Hash:         e.Hash,
	}
}

// LedgerHead returns the seq and hash of the newest entry, or (0, "") for an
// empty ledger.
func (t *Tx) LedgerHead(ctx context.Context) (int64, string, error) {
	var head struct {
		Seq  int64  `db:"seq"`
		Hash string `db:"hash"`
	}
	err := t.tx.GetContext(ctx, &head, `SELECT seq, hash FROM ledger_entries ORDER BY seq DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("read ledger head: %w", err)
	}
	return head.Seq, head.Hash, nil
}

// AppendLedger chains entries onto the ledger inside the caller's unit of
// work. Seq, CreatedAt, PrevHash and Hash are assigned here; the returned
// slice holds the stored entries.
func (t *Tx) AppendLedger(ctx context.Context, entries []shop.LedgerEntry, at time.Time) ([]shop.LedgerEntry, error) {
	seq, prev, err := t.LedgerHead(ctx)
	if err != nil {
		return nil, err
	}
	// Stored at microsecond precision; hash what will be read back.
	at = fromMicros(micros(at))

	out := make([]shop.LedgerEntry, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("append ledger: %w", err)
		}
		seq++
		e.Seq = seq
		e.CreatedAt = at
		e.PrevHash = prev
		if e.Hash, err = ledger.EntryHash(e); err != nil {
			return nil, fmt.Errorf("append ledger: %w", err)
		}

		_, err = t.tx.NamedExecContext(ctx, `
			INSERT INTO ledger_entries
			(seq, txn_id, change_type, sub_type, amount, liquid_type, potion_id, capacity_kind,
			 description, created_at, prev_hash, hash)
			VALUES
			(:seq, :txn_id, :change_type, :sub_type, :amount, :liquid_type, :potion_id, :capacity_kind,
			 :description, :created_at, :prev_hash, :hash)
		`, fromShopEntry(e))
		if err != nil {
			return nil, fmt.Errorf("append ledger seq %d: %w", seq, err)
		}
		prev = e.Hash
		out[i] = e
	}
	return out, nil
}

// LedgerEntries lists entries with seq > after in seq order. limit <= 0
// means no limit.
func (t *Tx) LedgerEntries(ctx context.Context, after int64, limit int) ([]shop.LedgerEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []ledgerRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT seq, txn_id, change_type, sub_type, amount, liquid_type, potion_id, capacity_kind,
		       description, created_at, prev_hash, hash
		FROM ledger_entries
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	out := make([]shop.LedgerEntry, len(rows))
	for i, r := range rows {
		out[i] = r.toShop()
	}
	return out, nil
}

// LedgerEntriesByTxn lists the entries of one unit of work in seq order.
func (t *Tx) LedgerEntriesByTxn(ctx context.Context, txnID string) ([]shop.LedgerEntry, error) {
	var rows []ledgerRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT seq, txn_id, change_type, sub_type, amount, liquid_type, potion_id, capacity_kind,
		       description, created_at, prev_hash, hash
		FROM ledger_entries
		WHERE txn_id = ?
		ORDER BY seq ASC
	`, txnID)
	if err != nil {
		return nil, fmt.Errorf("list ledger txn %s: %w", txnID, err)
	}
	out := make([]shop.LedgerEntry, len(rows))
	for i, r := range rows {
		out[i] = r.toShop()
	}
	return out, nil
}
