// Package store provides SQLite-backed durable storage for the potion shop.
//
// Tables:
//   - visits, customers: written by the registration collaborator
//   - global_inventory: the singleton resource pool (id = 1)
//   - potions: recipes and on-hand quantity
//   - carts, cart_items: shopping carts and their lines
//   - ledger_entries: the append-only, hash-chained audit trail
//   - reconcile_checkpoints, aggregate_halts: reconciliation bookkeeping
//
// # Units of Work
//
// Every engine operation runs inside Store.Update or Store.View and touches
// the database only through the *Tx it is handed. Writes to contended rows
// (global_inventory and each potions row) are compare-and-set on a version
// column and fail with ErrVersionConflict when the row moved since it was
// read; the engine retries those.
//
// Ledger rows are protected by triggers: UPDATE and DELETE abort. Seq and the
// hash chain are assigned by AppendLedger in the same transaction as the
// state change the entries describe.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as INTEGER unix microseconds.
package store
