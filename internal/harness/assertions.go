package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/potionshop/internal/shop"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", ev.Step, ev.Op, ev.Args, ev.Outcome)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failures.
func EvaluateAssertions(ctx context.Context, h *Harness, result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertInventory:
			err = assertInventory(result.Final.Inventory, a)
		case AssertPotion:
			err = assertPotion(result.Final.Potions, a)
		case AssertCart:
			err = assertCart(ctx, h, a)
		case AssertLedger:
			err = assertLedger(ctx, h, a)
		case AssertHalted:
			err = assertHalted(result.Final.Halts, a)
		case AssertReconciled:
			err = assertReconciled(ctx, h)
		case AssertStepCount:
			err = assertStepCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(ctx, h, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func assertInventory(inv shop.Inventory, a Assertion) error {
	actual := map[string]any{
		"gold":            inv.Gold,
		"red":             inv.Liquids.Red,
		"green":           inv.Liquids.Green,
		"blue":            inv.Liquids.Blue,
		"dark":            inv.Liquids.Dark,
		"potion_units":    inv.PotionUnits,
		"liquid_units":    inv.LiquidUnits,
		"potion_capacity": inv.PotionCapacity(),
		"liquid_capacity": inv.LiquidCapacity(),
	}
	return subsetError(AssertInventory, a.Expect, actual)
}

func assertPotion(potions []shop.Potion, a Assertion) error {
	for _, p := range potions {
		if p.SKU != a.SKU {
			continue
		}
		actual, err := toMap(p)
		if err != nil {
			return err
		}
		return subsetError(AssertPotion+" "+a.SKU, a.Expect, actual)
	}
	return &AssertionError{
		Type:     AssertPotion,
		Expected: fmt.Sprintf("potion %s", a.SKU),
		Actual:   "not in catalog",
	}
}

func assertCart(ctx context.Context, h *Harness, a Assertion) error {
	cart, err := h.engine.Cart(ctx, a.Cart)
	if err != nil {
		return &AssertionError{
			Type:     AssertCart,
			Expected: fmt.Sprintf("cart %d", a.Cart),
			Actual:   err.Error(),
		}
	}
	actual, err := toMap(cart)
	if err != nil {
		return err
	}
	items, err := h.engine.ListItems(ctx, a.Cart)
	if err != nil {
		return err
	}
	actual["items"] = len(items)
	return subsetError(fmt.Sprintf("%s %d", AssertCart, a.Cart), a.Expect, actual)
}

func assertLedger(ctx context.Context, h *Harness, a Assertion) error {
	entries, err := h.engine.Ledger(ctx, 0, 0)
	if err != nil {
		return err
	}
	count := 0
	for _, e := range entries {
		if a.ChangeType == "" || string(e.ChangeType) == a.ChangeType {
			count++
		}
	}
	if count != *a.Count {
		what := "ledger entries"
		if a.ChangeType != "" {
			what = a.ChangeType + " entries"
		}
		return &AssertionError{
			Type:     AssertLedger,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

func assertHalted(halts []string, a Assertion) error {
	want := slices.Clone(a.Aggregates)
	got := slices.Clone(halts)
	sort.Strings(want)
	sort.Strings(got)
	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertHalted,
			Expected: fmt.Sprintf("halted %v", want),
			Actual:   fmt.Sprintf("halted %v", got),
		}
	}
	return nil
}

func assertReconciled(ctx context.Context, h *Harness) error {
	report, err := h.engine.Reconcile(ctx, 0)
	if err != nil {
		return &AssertionError{
			Type:     AssertReconciled,
			Expected: "ledger replay matches live state",
			Actual:   err.Error(),
		}
	}
	if !report.Clean() {
		return &AssertionError{
			Type:     AssertReconciled,
			Expected: "no drift",
			Actual:   fmt.Sprintf("%d drifted accounts", len(report.Drift)),
		}
	}
	return nil
}

func assertStepCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Op == a.Op && (a.Outcome == "" || ev.Outcome == a.Outcome) {
			count++
		}
	}
	if count != *a.Count {
		what := a.Op
		if a.Outcome != "" {
			what += " -> " + a.Outcome
		}
		return &AssertionError{
			Type:     AssertStepCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState selects exactly one row and checks its columns.
// Table and column names are validated before interpolation; values are
// always bound as parameters.
func assertFinalState(ctx context.Context, h *Harness, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}
	whereSQL, whereArgs, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", a.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := h.store.DB().QueryxContext(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "row not found",
		}
	}
	row := map[string]any{}
	if err := rows.MapScan(row); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return subsetError(AssertFinalState+" "+a.Table, a.Expect, row)
}

// buildWhereClause constructs a parameterized WHERE clause. Keys are sorted
// for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, key+" = ?")
		args = append(args, where[key])
	}
	return strings.Join(clauses, " AND "), args, nil
}

func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func subsetError(what string, expected, actual map[string]any) error {
	mismatches := matchSubset("", expected, actual)
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     what,
		Expected: "fields to match",
		Actual:   strings.Join(mismatches, "; "),
	}
}

// matchSubset reports every key of expected that is missing from actual or
// holds a different value. Nested mappings are matched as subsets too.
func matchSubset(path string, expected, actual map[string]any) []string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		p := k
		if path != "" {
			p = path + "." + k
		}
		got, ok := actual[k]
		if !ok {
			out = append(out, fmt.Sprintf("%s: missing", p))
			continue
		}
		out = append(out, matchValue(p, expected[k], got)...)
	}
	return out
}

func matchValue(path string, want, got any) []string {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("%s: expected a mapping, got %v", path, got)}
		}
		return matchSubset(path, w, g)
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return []string{fmt.Sprintf("%s: expected %v, got %v", path, w, got)}
		}
		var out []string
		for i := range w {
			out = append(out, matchValue(fmt.Sprintf("%s[%d]", path, i), w[i], g[i])...)
		}
		return out
	}
	if !valuesEqual(want, got) {
		return []string{fmt.Sprintf("%s: expected %v, got %v", path, want, got)}
	}
	return nil
}

// valuesEqual compares scalars, treating every integer representation
// (YAML int, SQLite int64, json.Number) as the same number.
func valuesEqual(want, got any) bool {
	if wn, ok := toInt64(want); ok {
		gn, ok := toInt64(got)
		return ok && wn == gn
	}
	if wb, ok := want.(bool); ok {
		if gn, ok := toInt64(got); ok {
			return wb == (gn != 0)
		}
		gb, ok := got.(bool)
		return ok && wb == gb
	}
	if want == nil || got == nil {
		return want == nil && got == nil
	}
	return fmt.Sprint(want) == fmt.Sprint(got)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
