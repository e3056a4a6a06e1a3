package shop

import (
	"fmt"
	"strings"
)

// LiquidType names one of the four magical liquids.
type LiquidType string

const (
	Red   LiquidType = "red"
	Green LiquidType = "green"
	Blue  LiquidType = "blue"
	Dark  LiquidType = "dark"
)

// LiquidTypes lists the liquids in display order (the [r,g,b,d] order used
// by the catalog).
var LiquidTypes = []LiquidType{Red, Green, Blue, Dark}

// CanonicalLiquidOrder is the lexical order of liquid names. Every operation
// that withdraws several liquids does so in this order.
var CanonicalLiquidOrder = []LiquidType{Blue, Dark, Green, Red}

// ParseLiquidType converts a case-insensitive name to a LiquidType.
func ParseLiquidType(s string) (LiquidType, error) {
	lt := LiquidType(strings.ToLower(strings.TrimSpace(s)))
	switch lt {
	case Red, Green, Blue, Dark:
		return lt, nil
	}
	return "", Validationf("unknown liquid type %q", s)
}

// Liquids is a volume per liquid type, in milliliters.
// It is used both for recipes and for pool contents.
type Liquids struct {
	Red   int `json:"red" yaml:"red"`
	Green int `json:"green" yaml:"green"`
	Blue  int `json:"blue" yaml:"blue"`
	Dark  int `json:"dark" yaml:"dark"`
}

// Get returns the volume of one liquid type.
func (l Liquids) Get(lt LiquidType) int {
	switch lt {
	case Red:
		return l.Red
	case Green:
		return l.Green
	case Blue:
		return l.Blue
	case Dark:
		return l.Dark
	}
	panic(fmt.Sprintf("shop: unknown liquid type %q", lt))
}

// Set returns a copy of l with one liquid type replaced.
func (l Liquids) Set(lt LiquidType, v int) Liquids {
	switch lt {
	case Red:
		l.Red = v
	case Green:
		l.Green = v
	case Blue:
		l.Blue = v
	case Dark:
		l.Dark = v
	default:
		panic(fmt.Sprintf("shop: unknown liquid type %q", lt))
	}
	return l
}

// Total is the sum of all four volumes.
func (l Liquids) Total() int {
	return l.Red + l.Green + l.Blue + l.Dark
}

// Scale multiplies every volume by n.
func (l Liquids) Scale(n int) Liquids {
	return Liquids{Red: l.Red * n, Green: l.Green * n, Blue: l.Blue * n, Dark: l.Dark * n}
}

// Add returns the element-wise sum.
func (l Liquids) Add(o Liquids) Liquids {
	return Liquids{Red: l.Red + o.Red, Green: l.Green + o.Green, Blue: l.Blue + o.Blue, Dark: l.Dark + o.Dark}
}

// Negate flips the sign of every volume.
func (l Liquids) Negate() Liquids {
	return l.Scale(-1)
}

// Slice returns the volumes as [red, green, blue, dark].
func (l Liquids) Slice() []int {
	return []int{l.Red, l.Green, l.Blue, l.Dark}
}
