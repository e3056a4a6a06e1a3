package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/potionshop/internal/ledger"
	"github.com/roach88/potionshop/internal/policy"
)

// Scenario is one scripted run against a fresh shop.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pricing is optional CUE source for the capacity pricing policy.
	// Empty means the built-in flat price.
	Pricing string `yaml:"pricing,omitempty"`

	// RetryBudget overrides the engine's optimistic retry budget.
	RetryBudget int `yaml:"retry_budget,omitempty"`

	// Setup steps must all succeed. They are traced like flow steps.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence. Each step may state its expected outcome.
	Flow []Step `yaml:"flow"`

	// Assertions are checked against the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one shop operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Args are the operation arguments; see the package documentation.
	Args map[string]any `yaml:"args"`

	// Expect is checked against the step's outcome. Nil means the step
	// must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a step outcome.
type Expect struct {
	// Outcome is "ok" or an error code such as INSUFFICIENT_STOCK.
	Outcome string `yaml:"outcome"`

	// Result is matched as a subset of the operation's JSON result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Operations a step can invoke.
const (
	OpVisit        = "visit"
	OpDefineRecipe = "define_recipe"
	OpDeposit      = "deposit"
	OpMix          = "mix"
	OpCreateCart   = "create_cart"
	OpAddItem      = "add_item"
	OpUpdateItem   = "update_item"
	OpRemoveItem   = "remove_item"
	OpCheckout     = "checkout"
	OpUpgrade      = "upgrade"
	OpReconcile    = "reconcile"
	OpClearHalt    = "clear_halt"
	OpReset        = "reset"
	OpCorrupt      = "corrupt"
)

var knownOps = map[string]bool{
	OpVisit: true, OpDefineRecipe: true, OpDeposit: true, OpMix: true,
	OpCreateCart: true, OpAddItem: true, OpUpdateItem: true, OpRemoveItem: true,
	OpCheckout: true, OpUpgrade: true, OpReconcile: true, OpClearHalt: true,
	OpReset: true, OpCorrupt: true,
}

// OutcomeOK is the outcome of a step that returned no error.
const OutcomeOK = "ok"

// Assertion type constants.
const (
	AssertInventory  = "inventory"
	AssertPotion     = "potion"
	AssertCart       = "cart"
	AssertLedger     = "ledger"
	AssertHalted     = "halted"
	AssertReconciled = "reconciled"
	AssertStepCount  = "step_count"
	AssertFinalState = "final_state"
)

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// SKU selects the potion (potion).
	SKU string `yaml:"sku,omitempty"`

	// Cart selects the cart (cart).
	Cart int64 `yaml:"cart,omitempty"`

	// Op and Outcome filter trace steps (step_count).
	Op      string `yaml:"op,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// ChangeType filters ledger entries (ledger).
	ChangeType string `yaml:"change_type,omitempty"`

	// Count is the expected number of matches (ledger, step_count).
	Count *int `yaml:"count,omitempty"`

	// Aggregates is the exact set of halted aggregates (halted).
	Aggregates []string `yaml:"aggregates,omitempty"`

	// Table and Where select one row (final_state).
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected field values (inventory, potion, cart,
	// final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields, unknown operations and malformed assertions are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.RetryBudget < 0 {
		return fmt.Errorf("retry_budget must not be negative")
	}
	if s.Pricing != "" {
		if _, err := policy.Parse([]byte(s.Pricing), s.Name+".pricing"); err != nil {
			return fmt.Errorf("pricing: %w", err)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Outcome != OutcomeOK {
			return fmt.Errorf("setup[%d]: setup steps must succeed", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Op == "" {
		return fmt.Errorf("op is required")
	}
	if !knownOps[step.Op] {
		return fmt.Errorf("unknown op %q", step.Op)
	}
	// Args end up in the canonical trace, which has no floats or nulls.
	if _, err := ledger.MarshalCanonical(step.Args); err != nil {
		return fmt.Errorf("args: %w", err)
	}
	if step.Expect != nil && step.Expect.Outcome == "" {
		return fmt.Errorf("expect: outcome is required")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertInventory:
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for inventory")
		}
	case AssertPotion:
		if a.SKU == "" || len(a.Expect) == 0 {
			return fmt.Errorf("sku and expect are required for potion")
		}
	case AssertCart:
		if a.Cart == 0 || len(a.Expect) == 0 {
			return fmt.Errorf("cart and expect are required for cart")
		}
	case AssertLedger, AssertStepCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("a non-negative count is required for %s", a.Type)
		}
		if a.Type == AssertStepCount && a.Op == "" {
			return fmt.Errorf("op is required for step_count")
		}
	case AssertHalted, AssertReconciled:
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("table is required for final_state")
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for final_state")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
