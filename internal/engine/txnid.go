package engine

import "github.com/google/uuid"

// TxnIDGenerator generates the id shared by every ledger entry of one unit
// of work. Implemented by UUIDv7Generator (production) and
// testutil.SequentialGenerator (tests).
type TxnIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 txn ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time, which helps when reading the ledger by hand.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
