package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/potionshop/internal/engine"
	"github.com/roach88/potionshop/internal/policy"
	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
	"github.com/roach88/potionshop/internal/testutil"
)

// Harness executes scenario steps against one engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	txnIDs *testutil.SequentialGenerator
	logger *slog.Logger
}

// Run executes a scenario on a fresh in-memory database.
//
// Setup steps must succeed. Flow step outcomes are checked against their
// expect clauses and the assertions are evaluated last; failures of either
// are collected in Result.Errors. The returned error is reserved for
// scenarios that could not be executed at all.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()
	return h.run(ctx, scenario)
}

func newHarness(ctx context.Context, scenario *Scenario) (*Harness, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		txnIDs: testutil.NewSequentialGenerator("txn"),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	opts := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithTxnIDGenerator(h.txnIDs),
		engine.WithLogger(h.logger),
	}
	if scenario.Pricing != "" {
		p, err := policy.Parse([]byte(scenario.Pricing), scenario.Name+".pricing")
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("pricing: %w", err)
		}
		opts = append(opts, engine.WithPricing(p))
	}
	if scenario.RetryBudget > 0 {
		opts = append(opts, engine.WithRetryBudget(scenario.RetryBudget))
	}
	if h.engine, err = engine.Open(ctx, st, opts...); err != nil {
		st.Close()
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return h, nil
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()
	for i, step := range scenario.Setup {
		ev, opErr, err := h.execute(ctx, len(result.Trace)+1, step)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Op, err)
		}
		result.Trace = append(result.Trace, ev)
		if opErr != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Op, opErr)
		}
	}

	for i, step := range scenario.Flow {
		ev, opErr, err := h.execute(ctx, len(result.Trace)+1, step)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Op, err)
		}
		result.Trace = append(result.Trace, ev)
		for _, msg := range checkExpect(step, ev, opErr) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}
		h.logger.Info("flow step completed", "step", ev.Step, "op", step.Op, "outcome", ev.Outcome)
	}

	var err error
	if result.Final, err = h.final(ctx); err != nil {
		return nil, fmt.Errorf("read final state: %w", err)
	}

	for _, msg := range EvaluateAssertions(ctx, h, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// checkExpect compares one step's outcome with its expect clause.
func checkExpect(step Step, ev TraceEvent, opErr error) []string {
	want := OutcomeOK
	if step.Expect != nil {
		want = step.Expect.Outcome
	}
	if ev.Outcome != want {
		msg := fmt.Sprintf("expected outcome %s, got %s", want, ev.Outcome)
		if opErr != nil {
			msg += fmt.Sprintf(" (%v)", opErr)
		}
		return []string{msg}
	}
	if step.Expect == nil || step.Expect.Result == nil {
		return nil
	}
	return matchSubset("result", step.Expect.Result, ev.Result)
}

// execute runs one step. opErr is the engine's error, which becomes the
// step outcome; err means the step itself was malformed.
func (h *Harness) execute(ctx context.Context, n int, step Step) (ev TraceEvent, opErr error, err error) {
	a := args(step.Args)
	if a == nil {
		a = args{}
	}
	ev = TraceEvent{Step: n, Op: step.Op, Args: a}

	out, opErr := h.invoke(ctx, step.Op, a)
	var argErr *argError
	if errors.As(opErr, &argErr) {
		return ev, nil, opErr
	}

	switch {
	case opErr == nil:
		ev.Outcome = OutcomeOK
		ev.Result, err = toMap(out)
	case shop.CodeOf(opErr) != "":
		ev.Outcome = string(shop.CodeOf(opErr))
		ev.Result, err = toMap(errorResult(opErr))
	default:
		return ev, nil, opErr
	}
	if err != nil {
		return ev, nil, err
	}
	if txn, ok := ev.Result["txn_id"].(string); ok {
		ev.TxnID = txn
	}
	return ev, opErr, nil
}

func (h *Harness) invoke(ctx context.Context, op string, a args) (any, error) {
	e := h.engine
	switch op {
	case OpVisit:
		return h.visit(ctx, a)

	case OpDefineRecipe:
		def := shop.RecipeDef{
			Name:        a.strOr("name", ""),
			SKU:         a.strOr("sku", ""),
			Description: a.strOr("description", ""),
		}
		price, err := a.intOr("price", 0)
		if err != nil {
			return nil, err
		}
		def.Price = int64(price)
		for _, lt := range shop.LiquidTypes {
			v, err := a.intOr(string(lt), 0)
			if err != nil {
				return nil, err
			}
			def.Recipe = def.Recipe.Set(lt, v)
		}
		return e.DefineRecipe(ctx, def)

	case OpDeposit:
		lt, err := a.str("liquid")
		if err != nil {
			return nil, err
		}
		amount, err := a.int("amount")
		if err != nil {
			return nil, err
		}
		return e.DepositLiquid(ctx, shop.LiquidType(lt), amount)

	case OpMix:
		id, err := h.potionArg(ctx, a)
		if err != nil {
			return nil, err
		}
		batches, err := a.int("batches")
		if err != nil {
			return nil, err
		}
		return e.MixPotion(ctx, id, batches)

	case OpCreateCart:
		customer, err := a.int("customer")
		if err != nil {
			return nil, err
		}
		return e.CreateCart(ctx, int64(customer))

	case OpAddItem, OpUpdateItem, OpRemoveItem:
		cart, err := a.int("cart")
		if err != nil {
			return nil, err
		}
		id, err := h.potionArg(ctx, a)
		if err != nil {
			return nil, err
		}
		if op == OpRemoveItem {
			return e.RemoveItem(ctx, int64(cart), id)
		}
		qty, err := a.int("quantity")
		if err != nil {
			return nil, err
		}
		if op == OpAddItem {
			return e.AddItem(ctx, int64(cart), id, qty)
		}
		return e.UpdateItem(ctx, int64(cart), id, qty)

	case OpCheckout:
		cart, err := a.int("cart")
		if err != nil {
			return nil, err
		}
		return e.Checkout(ctx, int64(cart), a.strOr("payment", "gold"))

	case OpUpgrade:
		kind, err := a.str("kind")
		if err != nil {
			return nil, err
		}
		units, err := a.int("units")
		if err != nil {
			return nil, err
		}
		return e.UpgradeCapacity(ctx, shop.CapacityKind(kind), units)

	case OpReconcile:
		since, err := a.intOr("since", 0)
		if err != nil {
			return nil, err
		}
		return e.Reconcile(ctx, int64(since))

	case OpClearHalt:
		aggregate, err := a.str("aggregate")
		if err != nil {
			return nil, err
		}
		return nil, e.ClearHalt(ctx, aggregate)

	case OpReset:
		return e.Reset(ctx)

	case OpCorrupt:
		query, err := a.str("sql")
		if err != nil {
			return nil, err
		}
		if _, err := h.store.DB().ExecContext(ctx, query); err != nil {
			return nil, fmt.Errorf("corrupt: %w", err)
		}
		return nil, nil
	}
	return nil, &argError{fmt.Sprintf("unknown op %q", op)}
}

// visit records customers directly; registration is not an engine operation.
func (h *Harness) visit(ctx context.Context, a args) (any, error) {
	visitID, err := a.int("visit")
	if err != nil {
		return nil, err
	}
	raw, ok := a["customers"].([]any)
	if !ok || len(raw) == 0 {
		return nil, &argError{"customers must be a non-empty list"}
	}
	customers := make([]shop.Customer, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, &argError{fmt.Sprintf("customers[%d] must be a mapping", i)}
		}
		c := args(m)
		level, err := c.intOr("level", 1)
		if err != nil {
			return nil, err
		}
		customers = append(customers, shop.Customer{
			Name:  c.strOr("customer_name", ""),
			Class: c.strOr("character_class", ""),
			Level: level,
		})
	}

	var out []shop.Customer
	err = h.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.RecordVisit(ctx, int64(visitID), customers, h.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return struct {
		Customers []shop.Customer `json:"customers"`
	}{out}, nil
}

// potionArg resolves the "sku" argument to a potion id.
func (h *Harness) potionArg(ctx context.Context, a args) (int64, error) {
	sku, err := a.str("sku")
	if err != nil {
		return 0, err
	}
	potions, err := h.engine.Potions(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range potions {
		if p.SKU == sku {
			return p.ID, nil
		}
	}
	return 0, shop.NotFoundf("potion %q not found", sku)
}

func (h *Harness) final(ctx context.Context) (Final, error) {
	var f Final
	var err error
	if f.Inventory, err = h.engine.Inventory(ctx); err != nil {
		return f, err
	}
	if f.Potions, err = h.engine.Potions(ctx); err != nil {
		return f, err
	}
	entries, err := h.engine.Ledger(ctx, 0, 0)
	if err != nil {
		return f, err
	}
	f.LedgerEntries = len(entries)
	halts, err := h.engine.Halts(ctx)
	if err != nil {
		return f, err
	}
	f.Halts = make([]string, len(halts))
	for i, halt := range halts {
		f.Halts[i] = halt.Aggregate
	}
	return f, nil
}

// errorResult is the JSON shape of a failed step's result.
func errorResult(err error) any {
	var se *shop.Error
	errors.As(err, &se)
	return struct {
		Message   string          `json:"message"`
		Shortages []shop.Shortage `json:"shortages,omitempty"`
		Drift     []shop.Drift    `json:"drift,omitempty"`
	}{se.Message, se.Shortages, se.Drift}
}

// toMap round-trips v through JSON. Numbers decode as json.Number.
func toMap(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	out := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

// argError marks a malformed step rather than an engine failure.
type argError struct {
	msg string
}

func (e *argError) Error() string { return e.msg }

// args reads typed values from a step's YAML arguments.
type args map[string]any

func (a args) int(key string) (int, error) {
	v, ok := a[key]
	if !ok {
		return 0, &argError{fmt.Sprintf("missing argument %q", key)}
	}
	n, ok := v.(int)
	if !ok {
		return 0, &argError{fmt.Sprintf("argument %q must be an integer, got %T", key, v)}
	}
	return n, nil
}

func (a args) intOr(key string, def int) (int, error) {
	if _, ok := a[key]; !ok {
		return def, nil
	}
	return a.int(key)
}

func (a args) str(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", &argError{fmt.Sprintf("missing argument %q", key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &argError{fmt.Sprintf("argument %q must be a string, got %T", key, v)}
	}
	return s, nil
}

func (a args) strOr(key, def string) string {
	if s, ok := a[key].(string); ok {
		return s
	}
	return def
}
