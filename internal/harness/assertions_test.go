package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name      string
		want, got any
		equal     bool
	}{
		{"int and int64", 5, int64(5), true},
		{"int and json number", 5, json.Number("5"), true},
		{"negative", -60, int64(-60), true},
		{"different numbers", 5, int64(6), false},
		{"number and string", 5, "5", false},
		{"bool and sqlite int", true, int64(1), true},
		{"false and sqlite zero", false, int64(0), true},
		{"bool and bool", false, true, false},
		{"strings", "OPEN", "OPEN", true},
		{"nil and nil", nil, nil, true},
		{"nil and value", nil, "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, valuesEqual(tt.want, tt.got))
		})
	}
}

func TestMatchSubset(t *testing.T) {
	actual := map[string]any{
		"status": "OPEN",
		"total":  json.Number("215"),
		"consumed": map[string]any{
			"red":  json.Number("400"),
			"blue": json.Number("0"),
		},
		"shortages": []any{
			map[string]any{"sku": "GREEN", "requested": json.Number("3"), "available": json.Number("2")},
		},
	}

	assert.Empty(t, matchSubset("", map[string]any{"status": "OPEN"}, actual))
	assert.Empty(t, matchSubset("", map[string]any{
		"consumed":  map[string]any{"red": 400},
		"shortages": []any{map[string]any{"sku": "GREEN", "available": 2}},
	}, actual))

	got := matchSubset("result", map[string]any{
		"total":     216,
		"missing":   1,
		"consumed":  map[string]any{"red": 1},
		"shortages": []any{},
		"status":    map[string]any{"x": 1},
	}, actual)
	assert.Equal(t, []string{
		"result.consumed.red: expected 1, got 400",
		"result.missing: missing",
		"result.shortages: expected [], got [map[available:2 requested:3 sku:GREEN]]",
		"result.status: expected a mapping, got OPEN",
		"result.total: expected 216, got 215",
	}, got)
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"txn_id": "txn-0003", "seq": 6})
	require.NoError(t, err)
	assert.Equal(t, "seq = ? AND txn_id = ?", sql)
	assert.Equal(t, []any{6, "txn-0003"}, args)

	sql, args, err = buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)

	_, _, err = buildWhereClause(map[string]any{"seq; DROP TABLE carts": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")

	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "a=1 AND b=x", formatWhereClause(map[string]any{"b": "x", "a": 1}))
}

func TestAssertFinalState(t *testing.T) {
	scenario := mustParse(t, `
name: final_state
description: "Row lookups"
flow:
  - op: deposit
    args: { liquid: blue, amount: 250 }
assertions:
  - type: reconciled
`)
	h, result := runForAssertions(t, scenario)
	ctx := context.Background()

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{
			name: "matching row",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "ledger_entries",
				Where:  map[string]any{"seq": 4},
				Expect: map[string]any{"change_type": "LIQUID_DEPOSIT", "liquid_type": "blue", "amount": 250},
			},
		},
		{
			name: "wrong value",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "global_inventory",
				Where:  map[string]any{"id": 1},
				Expect: map[string]any{"gold": 99},
			},
			wantErr: "gold: expected 99, got 100",
		},
		{
			name: "no row",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "ledger_entries",
				Where:  map[string]any{"seq": 99},
				Expect: map[string]any{"amount": 1},
			},
			wantErr: "row not found",
		},
		{
			name: "ambiguous",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "ledger_entries",
				Where:  map[string]any{"change_type": "GENESIS"},
				Expect: map[string]any{"amount": 1},
			},
			wantErr: "multiple rows matched",
		},
		{
			name: "bad table",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "carts; --",
				Expect: map[string]any{"id": 1},
			},
			wantErr: "invalid table name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(ctx, h, result, []Assertion{tt.a})
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertStepCount,
		Expected: "1 occurrences of mix",
		Actual:   "0 occurrences",
		Trace: []TraceEvent{
			{Step: 1, Op: OpDeposit, Args: map[string]any{"liquid": "red"}, Outcome: OutcomeOK},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: step_count")
	assert.Contains(t, msg, "Expected: 1 occurrences of mix")
	assert.Contains(t, msg, "[1] deposit map[liquid:red] -> ok")
}

// runForAssertions runs a scenario and keeps its database open so individual
// assertions can be evaluated against the final state.
func runForAssertions(t *testing.T, scenario *Scenario) (*Harness, *Result) {
	t.Helper()
	ctx := context.Background()
	h, err := newHarness(ctx, scenario)
	require.NoError(t, err)
	t.Cleanup(func() { h.store.Close() })

	result, err := h.run(ctx, scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	return h, result
}
