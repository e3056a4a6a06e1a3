// Package policy loads the capacity pricing policy.
//
// The policy is a CUE file unified with an embedded schema (schema.cue) that
// rejects negative or decreasing curves and fills in defaults:
//
//	potion: { base: 1000, step: 250 }
//	liquid: { base: 1000 }
package policy

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/potionshop/internal/shop"
)

//go:embed schema.cue
var schemaCUE string

// Curve prices one capacity kind.
type Curve struct {
	Base int64 `json:"base"`
	Step int64 `json:"step"`
}

// UnitPrice is the cost of growing capacity from current to current+1 units.
func (c Curve) UnitPrice(current int) int64 {
	n := int64(current) - 1
	if n < 0 {
		n = 0
	}
	return satAdd(c.Base, satMul(c.Step, n))
}

// Total is the cost of units consecutive purchases starting at current, the
// sum of UnitPrice(current) through UnitPrice(current+units-1). It saturates
// at math.MaxInt64, which no shop can afford.
func (c Curve) Total(current, units int) int64 {
	if units <= 0 {
		return 0
	}
	n := int64(units)

	// Purchase i pays Base + Step*max(current-1+i, 0). The first purchases
	// may sit on the flat part; the rest climb 0, 1, 2... from start.
	start := int64(current) - 1
	var flat int64
	if start < 0 {
		flat = min(n, -start)
		start = 0
	}
	m := n - flat
	var steps int64
	if m > 0 {
		// m*(m-1)/2 with the halving done first.
		var tri int64
		if m%2 == 0 {
			tri = satMul(m/2, m-1)
		} else {
			tri = satMul(m, (m-1)/2)
		}
		steps = satAdd(satMul(m, start), tri)
	}
	return satAdd(satMul(n, c.Base), satMul(c.Step, steps))
}

// satMul and satAdd take non-negative operands and clamp at math.MaxInt64.
func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func satAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// Policy prices capacity upgrades.
type Policy struct {
	Potion Curve `json:"potion"`
	Liquid Curve `json:"liquid"`
}

// Default is a flat 1000 gold per unit of either kind.
func Default() Policy {
	return Policy{
		Potion: Curve{Base: 1000},
		Liquid: Curve{Base: 1000},
	}
}

// Cost is the gold needed to buy units of kind when current units are owned.
func (p Policy) Cost(kind shop.CapacityKind, current, units int) int64 {
	if kind == shop.CapacityPotion {
		return p.Potion.Total(current, units)
	}
	return p.Liquid.Total(current, units)
}

// Load reads and validates a policy file.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read pricing policy: %w", err)
	}
	return Parse(data, path)
}

// Parse validates CUE source against the policy schema.
func Parse(data []byte, filename string) (Policy, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Policy{}, formatCUEError(err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Policy{}, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Policy")).Unify(v)
	if err := unified.Validate(); err != nil {
		return Policy{}, formatCUEError(err)
	}

	// Decode resolves defaults and fails on anything left incomplete.
	var p Policy
	if err := unified.Decode(&p); err != nil {
		return Policy{}, formatCUEError(err)
	}
	return p, nil
}

// Error is a policy validation failure with its CUE source position.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return "pricing policy: " + e.Message
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	pe := &Error{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		pe.Pos = positions[0]
	}
	return pe
}
