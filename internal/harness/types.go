package harness

import "github.com/roach88/potionshop/internal/shop"

// TraceEvent is one executed step.
type TraceEvent struct {
	Step    int            `json:"step"`
	Op      string         `json:"op"`
	Args    map[string]any `json:"args"`
	Outcome string         `json:"outcome"`
	// TxnID is set when the step committed a journal.
	TxnID string `json:"txn,omitempty"`
	// Result is the operation's return value decoded from JSON. It is not
	// part of the golden trace.
	Result map[string]any `json:"-"`
}

// Final summarizes the shop after the last step.
type Final struct {
	Inventory     shop.Inventory
	Potions       []shop.Potion
	LedgerEntries int
	Halts         []string
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists setup and flow steps in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	Final Final `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
