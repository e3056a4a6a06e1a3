// Package engine implements the potion shop's inventory and ledger
// consistency engine.
//
// The engine is the only writer of the shared resource pool (gold, liquids,
// capacity) and of potion stock. Every operation that changes them commits
// the change and its ledger entries in one store transaction.
//
// CONCURRENCY MODEL:
//
// Optimistic Units of Work:
// Each mutating operation runs as
//  1. Snapshot: read the rows it depends on in a read transaction
//  2. Decide: apply pure transitions (shop.Inventory) to the snapshot
//  3. Commit: write back with compare-and-set on each row's version,
//     append ledger entries, all in one write transaction
//
// A failed compare-and-set (store.ErrVersionConflict) restarts the unit of
// work from step 1. After the retry budget (DefaultRetryBudget) is spent the
// operation fails with a BUSY error, which callers may retry.
//
// Checkout State Machine:
// OPEN -> CHECKING_OUT -> CHECKED_OUT, or back to OPEN when the sale cannot
// commit. Carts left in CHECKING_OUT by a crash are reopened by Open.
//
// Ledger:
// Entries are hash-chained and never updated. Reconcile replays them and
// compares the result with live state; drift halts writes to the affected
// aggregates until an operator clears the halt.
package engine
