// Package shop defines the domain types shared by the potion shop engine,
// its SQLite store and the reconciliation code.
//
// The package holds no I/O. Its types are plain values:
//   - Liquids: a red/green/blue/dark volume vector in milliliters
//   - Inventory: the singleton resource pool (gold, liquids, capacity units)
//   - Potion, Cart, CartItem, Customer, Visit: catalog and sales records
//   - LedgerEntry, Journal: the append-only audit trail
//   - State: the aggregate view that reconciliation recomputes from the ledger
//
// Resource Pool transitions (Deposit, Withdraw, CreditGold, DebitGold) are
// methods on Inventory that mutate a value copy. The engine applies them to a
// snapshot and persists the result in one unit of work, so they compose
// inside larger operations without any locking.
//
// # Units
//
// Liquid capacity is LiquidUnitSize ml per liquid capacity unit and applies to
// each liquid type separately. Potion capacity is PotionUnitSize potions per
// potion capacity unit and applies to the sum over all potions.
package shop
