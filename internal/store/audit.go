package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/potionshop/internal/shop"
)

// Checkpoint is the replayed state at a ledger seq that reconciled clean.
type Checkpoint struct {
	Seq       int64
	Hash      string
	State     shop.State
	CreatedAt time.Time
}

type checkpointRow struct {
	Seq       int64  `db:"seq"`
	Hash      string `db:"hash"`
	State     string `db:"state"`
	CreatedAt int64  `db:"created_at"`
}

// SaveCheckpoint stores cp, replacing any checkpoint at the same seq.
func (t *Tx) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	state, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("save checkpoint %d: %w", cp.Seq, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO reconcile_checkpoints (seq, hash, state, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(seq) DO UPDATE SET hash = excluded.hash, state = excluded.state, created_at = excluded.created_at
	`, cp.Seq, cp.Hash, string(state), micros(cp.CreatedAt))
	if err != nil {
		return fmt.Errorf("save checkpoint %d: %w", cp.Seq, err)
	}
	return nil
}

// Checkpoint reads the checkpoint at seq.
func (t *Tx) Checkpoint(ctx context.Context, seq int64) (Checkpoint, error) {
	var row checkpointRow
	err := t.tx.GetContext(ctx, &row, `SELECT seq, hash, state, created_at FROM reconcile_checkpoints WHERE seq = ?`, seq)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read checkpoint %d: %w", seq, notFound(err))
	}
	return row.decode()
}

// LatestCheckpoint reads the checkpoint with the highest seq.
func (t *Tx) LatestCheckpoint(ctx context.Context) (Checkpoint, error) {
	var row checkpointRow
	err := t.tx.GetContext(ctx, &row, `SELECT seq, hash, state, created_at FROM reconcile_checkpoints ORDER BY seq DESC LIMIT 1`)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read latest checkpoint: %w", notFound(err))
	}
	return row.decode()
}

func (r checkpointRow) decode() (Checkpoint, error) {
	state := shop.NewState()
	if err := json.Unmarshal([]byte(r.State), &state); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint %d: %w", r.Seq, err)
	}
	if state.Potions == nil {
		state.Potions = map[int64]int{}
	}
	return Checkpoint{Seq: r.Seq, Hash: r.Hash, State: state, CreatedAt: fromMicros(r.CreatedAt)}, nil
}

// Halt freezes writes to an aggregate ("inventory" or "potion:<id>").
type Halt struct {
	Aggregate string    `db:"aggregate" json:"aggregate"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"-" json:"created_at"`
}

type haltRow struct {
	Aggregate string `db:"aggregate"`
	Reason    string `db:"reason"`
	CreatedAt int64  `db:"created_at"`
}

// SetHalt records a halt, replacing the reason of an existing one.
func (t *Tx) SetHalt(ctx context.Context, aggregate, reason string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO aggregate_halts (aggregate, reason, created_at) VALUES (?, ?, ?)
		ON CONFLICT(aggregate) DO UPDATE SET reason = excluded.reason
	`, aggregate, reason, micros(at))
	if err != nil {
		return fmt.Errorf("set halt %s: %w", aggregate, err)
	}
	return nil
}

// Halts lists every halted aggregate ordered by name.
func (t *Tx) Halts(ctx context.Context) ([]Halt, error) {
	var rows []haltRow
	if err := t.tx.SelectContext(ctx, &rows, `SELECT aggregate, reason, created_at FROM aggregate_halts ORDER BY aggregate`); err != nil {
		return nil, fmt.Errorf("list halts: %w", err)
	}
	out := make([]Halt, len(rows))
	for i, r := range rows {
		out[i] = Halt{Aggregate: r.Aggregate, Reason: r.Reason, CreatedAt: fromMicros(r.CreatedAt)}
	}
	return out, nil
}

// ClearHalt removes a halt. Returns ErrNotFound if the aggregate is not halted.
func (t *Tx) ClearHalt(ctx context.Context, aggregate string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM aggregate_halts WHERE aggregate = ?`, aggregate)
	if err != nil {
		return fmt.Errorf("clear halt %s: %w", aggregate, err)
	}
	return expectRow(res, fmt.Sprintf("clear halt %s", aggregate))
}
