package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: valid
description: "A valid scenario"
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
  - type: ledger
    count: 4
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "valid", scenario.Name)
	require.Len(t, scenario.Setup, 1)
	assert.Equal(t, OpDefineRecipe, scenario.Setup[0].Op)
	assert.Equal(t, 100, scenario.Setup[0].Args["red"])
	require.Len(t, scenario.Flow, 2)
	assert.Nil(t, scenario.Flow[0].Expect)
	require.NotNil(t, scenario.Flow[1].Expect)
	assert.Equal(t, "INSUFFICIENT_RESOURCE", scenario.Flow[1].Expect.Outcome)
	require.Len(t, scenario.Assertions, 1)
	require.NotNil(t, scenario.Assertions[0].Count)
	assert.Equal(t, 4, *scenario.Assertions[0].Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "malformed yaml",
			src:  "name: [unclosed",
			want: "failed to parse YAML",
		},
		{
			name: "unknown field",
			src: `
name: x
description: d
flows: []
`,
			want: "field flows not found",
		},
		{
			name: "missing name",
			src: `
description: d
flow: [{ op: reset }]
assertions: [{ type: reconciled }]
`,
			want: "name is required",
		},
		{
			name: "missing description",
			src: `
name: x
flow: [{ op: reset }]
assertions: [{ type: reconciled }]
`,
			want: "description is required",
		},
		{
			name: "empty flow",
			src: `
name: x
description: d
assertions: [{ type: reconciled }]
`,
			want: "flow list is required",
		},
		{
			name: "no assertions",
			src: `
name: x
description: d
flow: [{ op: reset }]
`,
			want: "assertions list is required",
		},
		{
			name: "negative retry budget",
			src: `
name: x
description: d
retry_budget: -1
flow: [{ op: reset }]
assertions: [{ type: reconciled }]
`,
			want: "retry_budget must not be negative",
		},
		{
			name: "bad pricing",
			src: `
name: x
description: d
pricing: "potion: { base: -5 }"
flow: [{ op: reset }]
assertions: [{ type: reconciled }]
`,
			want: "pricing:",
		},
		{
			name: "unknown op",
			src: `
name: x
description: d
flow: [{ op: brew }]
assertions: [{ type: reconciled }]
`,
			want: `flow[0]: unknown op "brew"`,
		},
		{
			name: "float argument",
			src: `
name: x
description: d
flow: [{ op: deposit, args: { liquid: red, amount: 1.5 } }]
assertions: [{ type: reconciled }]
`,
			want: "flow[0]: args:",
		},
		{
			name: "expect without outcome",
			src: `
name: x
description: d
flow: [{ op: reset, expect: { result: { txn_id: "" } } }]
assertions: [{ type: reconciled }]
`,
			want: "expect: outcome is required",
		},
		{
			name: "setup expecting failure",
			src: `
name: x
description: d
setup: [{ op: reset, expect: { outcome: BUSY } }]
flow: [{ op: reset }]
assertions: [{ type: reconciled }]
`,
			want: "setup[0]: setup steps must succeed",
		},
		{
			name: "unknown assertion",
			src: `
name: x
description: d
flow: [{ op: reset }]
assertions: [{ type: vibes }]
`,
			want: `assertions[0]: unknown assertion type "vibes"`,
		},
		{
			name: "potion without sku",
			src: `
name: x
description: d
flow: [{ op: reset }]
assertions: [{ type: potion, expect: { quantity: 0 } }]
`,
			want: "sku and expect are required",
		},
		{
			name: "ledger without count",
			src: `
name: x
description: d
flow: [{ op: reset }]
assertions: [{ type: ledger, change_type: SALE }]
`,
			want: "a non-negative count is required for ledger",
		},
		{
			name: "step_count without op",
			src: `
name: x
description: d
flow: [{ op: reset }]
assertions: [{ type: step_count, count: 1 }]
`,
			want: "op is required for step_count",
		},
		{
			name: "final_state without table",
			src: `
name: x
description: d
flow: [{ op: reset }]
assertions: [{ type: final_state, expect: { gold: 100 } }]
`,
			want: "table is required for final_state",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
