package harness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/potionshop/internal/shop"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".yaml"), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/checkout_happy_path.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_TraceCarriesOutcomesAndTxnIDs(t *testing.T) {
	scenario := mustParse(t, `
name: trace
description: "Outcomes and txn ids"
setup:
  - op: define_recipe
    args: { name: Red, sku: RED, red: 100, price: 10 }
flow:
  - op: deposit
    args: { liquid: red, amount: 100 }
  - op: mix
    args: { sku: RED, batches: 2 }
    expect:
      outcome: INSUFFICIENT_RESOURCE
assertions:
  - type: inventory
    expect: { red: 100 }
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, OutcomeOK, result.Trace[0].Outcome)
	assert.Empty(t, result.Trace[0].TxnID, "recipes write no ledger entry")
	assert.Equal(t, "txn-0002", result.Trace[1].TxnID)
	assert.Equal(t, string(shop.CodeInsufficientResource), result.Trace[2].Outcome)
	assert.Empty(t, result.Trace[2].TxnID)
	assert.Contains(t, result.Trace[2].Result, "message")
	assert.Equal(t, 4, result.Final.LedgerEntries)
}

func TestRun_UnexpectedOutcomeFails(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_outcome
description: "A step that fails without an expect clause"
flow:
  - op: mix
    args: { sku: NOPE, batches: 1 }
  - op: deposit
    args: { liquid: red, amount: 10 }
    expect:
      outcome: ok
      result: { accepted: 11 }
assertions:
  - type: ledger
    count: 4
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "flow[0] mix: expected outcome ok, got NOT_FOUND")
	assert.Contains(t, result.Errors[1], "result.accepted: expected 11, got 10")
}

func TestRun_FailedAssertionsAreCollected(t *testing.T) {
	scenario := mustParse(t, `
name: failing_assertions
description: "Every assertion is wrong"
flow:
  - op: deposit
    args: { liquid: blue, amount: 5 }
assertions:
  - type: inventory
    expect: { blue: 6 }
  - type: halted
    aggregates: [inventory]
  - type: step_count
    op: deposit
    count: 2
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.True(t, strings.HasPrefix(result.Errors[0], "assertions[0]: "))
	assert.Contains(t, result.Errors[0], "blue: expected 6, got 5")
	assert.Contains(t, result.Errors[1], "halted [inventory]")
	assert.Contains(t, result.Errors[2], "2 occurrences of deposit")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := mustParse(t, `
name: bad_setup
description: "Setup mixes an undefined potion"
setup:
  - op: mix
    args: { sku: MISSING, batches: 1 }
flow:
  - op: reset
assertions:
  - type: reconciled
`)
	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0] mix")
	assert.True(t, shop.IsNotFound(err))
}

func TestRun_MalformedArgsAbort(t *testing.T) {
	tests := []struct {
		name string
		flow string
		want string
	}{
		{
			name: "missing argument",
			flow: `{ op: deposit, args: { liquid: red } }`,
			want: `missing argument "amount"`,
		},
		{
			name: "wrong type",
			flow: `{ op: create_cart, args: { customer: one } }`,
			want: `argument "customer" must be an integer`,
		},
		{
			name: "empty visit",
			flow: `{ op: visit, args: { visit: 1, customers: [] } }`,
			want: "customers must be a non-empty list",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := mustParse(t, `
name: malformed
description: "Malformed arguments"
flow:
  - `+tt.flow+`
assertions:
  - type: reconciled
`)
			_, err := Run(context.Background(), scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_RetryBudgetAndPricing(t *testing.T) {
	scenario := mustParse(t, `
name: priced
description: "Pricing from the scenario"
retry_budget: 2
pricing: |
  potion: { base: 10, step: 5 }
flow:
  - op: upgrade
    args: { kind: potion, units: 2 }
    expect:
      outcome: ok
      result: { cost: 25, total: 3 }
assertions:
  - type: inventory
    expect: { gold: 75, potion_capacity: 150 }
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_VisitRecordsCustomers(t *testing.T) {
	scenario := mustParse(t, `
name: visit
description: "Customers from a visit can open carts"
flow:
  - op: visit
    args:
      visit: 3
      customers:
        - { customer_name: Aria, character_class: Wizard }
        - { customer_name: Dax, character_class: Bard, level: 9 }
    expect:
      outcome: ok
      result:
        customers:
          - { id: 1, visit_id: 3, customer_name: Aria, level: 1 }
          - { id: 2, visit_id: 3, customer_name: Dax, level: 9 }
  - op: create_cart
    args: { customer: 2 }
  - op: create_cart
    args: { customer: 9 }
    expect:
      outcome: NOT_FOUND
assertions:
  - type: cart
    cart: 1
    expect: { customer_id: 2, status: OPEN, items: 0 }
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestLoadScenario_TestdataIsValid(t *testing.T) {
	entries, err := os.ReadDir("testdata/scenarios")
	require.NoError(t, err)
	for _, entry := range entries {
		_, err := LoadScenario(filepath.Join("testdata/scenarios", entry.Name()))
		assert.NoError(t, err, entry.Name())
	}
}

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return scenario
}
