package harness

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/potionshop/internal/ledger"
	"github.com/roach88/potionshop/internal/shop"
)

// Snapshot renders a result as the golden trace: one canonical JSON object
// per line. The first line names the scenario, then one line per step, then
// the final state. Results and timestamps are left out; txn ids come from a
// sequential generator and are stable.
func Snapshot(name string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	line := func(v map[string]any) error {
		data, err := ledger.MarshalCanonical(v)
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
		return nil
	}

	if err := line(map[string]any{"scenario": name}); err != nil {
		return nil, err
	}
	for _, ev := range result.Trace {
		args := ev.Args
		if args == nil {
			args = map[string]any{}
		}
		obj := map[string]any{
			"step":    ev.Step,
			"op":      ev.Op,
			"args":    args,
			"outcome": ev.Outcome,
		}
		if ev.TxnID != "" {
			obj["txn"] = ev.TxnID
		}
		if err := line(obj); err != nil {
			return nil, fmt.Errorf("step %d: %w", ev.Step, err)
		}
	}
	if err := line(map[string]any{"final": finalObject(result.Final)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func finalObject(f Final) map[string]any {
	liquids := map[string]any{}
	for _, lt := range shop.LiquidTypes {
		liquids[string(lt)] = f.Inventory.Liquids.Get(lt)
	}
	potions := map[string]any{}
	for _, p := range f.Potions {
		potions[p.SKU] = p.Quantity
	}
	halts := make([]any, len(f.Halts))
	for i, h := range f.Halts {
		halts[i] = h
	}
	return map[string]any{
		"gold":           f.Inventory.Gold,
		"liquids":        liquids,
		"potion_units":   f.Inventory.PotionUnits,
		"liquid_units":   f.Inventory.LiquidUnits,
		"potions":        potions,
		"ledger_entries": f.LedgerEntries,
		"halts":          halts,
	}
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
