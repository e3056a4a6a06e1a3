// Package harness runs scripted shop scenarios against a real engine.
//
// Each scenario gets a fresh in-memory database, a deterministic clock and
// sequential txn ids, so the same file always produces the same ledger and
// the same golden trace.
//
// # Scenario Format
//
//	name: checkout_short_stock
//	description: "A checkout that cannot be covered changes nothing"
//	pricing: |                      # optional CUE capacity pricing
//	  potion: { base: 10 }
//	setup:
//	  - op: define_recipe
//	    args: { name: Red, sku: RED, red: 100, price: 50 }
//	flow:
//	  - op: checkout
//	    args: { cart: 1 }
//	    expect:
//	      outcome: INSUFFICIENT_STOCK
//	      result: { shortages: [{ sku: RED, requested: 3, available: 2 }] }
//	assertions:
//	  - type: inventory
//	    expect: { gold: 100 }
//
// # Operations
//
//   - visit: visit, customers [{customer_name, character_class, level}]
//   - define_recipe: name, sku, red, green, blue, dark, price, description
//   - deposit: liquid, amount
//   - mix: sku, batches
//   - create_cart: customer
//   - add_item, update_item: cart, sku, quantity
//   - remove_item: cart, sku
//   - checkout: cart, payment
//   - upgrade: kind, units
//   - reconcile: since
//   - clear_halt: aggregate
//   - reset
//   - corrupt: sql (edits the database behind the engine's back)
//
// A step's outcome is "ok" or the engine error code. Steps without an
// expect clause must succeed.
//
// # Assertion Types
//
//   - inventory: gold, liquids, units and capacities
//   - potion: fields of the potion with the given sku
//   - cart: fields of a cart, plus its number of items
//   - ledger: number of entries, optionally of one change_type
//   - halted: the exact set of halted aggregates
//   - reconciled: a full replay matches live state
//   - step_count: number of steps with an op (and outcome)
//   - final_state: one row of any table, selected by where
package harness
