package shop

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error is the single error type returned by engine operations.
//
// Callers branch on Code (or the IsXxx helpers). Shortages and Drift carry
// the structured payload for INSUFFICIENT_STOCK and INCONSISTENCY errors.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Shortages lists every short cart line (INSUFFICIENT_STOCK only).
	Shortages []Shortage

	// Drift lists every account whose replayed value differs from live state
	// (INCONSISTENCY only).
	Drift []Drift

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeValidation: malformed input, no effect.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeNotFound: a referenced customer, cart, potion or checkpoint does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeInsufficientResource: the liquid pool cannot cover a withdrawal.
	CodeInsufficientResource ErrorCode = "INSUFFICIENT_RESOURCE"

	// CodeInsufficientStock: potion quantity cannot cover a checkout.
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"

	// CodeInsufficientGold: a debit would make gold negative.
	CodeInsufficientGold ErrorCode = "INSUFFICIENT_GOLD"

	// CodeCapacityExceeded: the result would not fit in potion storage.
	CodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// CodeInvalidState: cart state machine violation.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeBusy: optimistic retry budget exhausted. Safe to retry.
	CodeBusy ErrorCode = "BUSY"

	// CodeInconsistency: ledger and live state disagree. Fatal.
	CodeInconsistency ErrorCode = "INCONSISTENCY"
)

// Shortage is one cart line that cannot be satisfied from stock.
type Shortage struct {
	PotionID  int64  `json:"potion_id"`
	SKU       string `json:"sku"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Drift is one account whose live value differs from the ledger replay.
type Drift struct {
	Account  string `json:"account"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Shortages) > 0 {
		parts := make([]string, len(e.Shortages))
		for i, s := range e.Shortages {
			parts[i] = fmt.Sprintf("%s requested=%d available=%d", s.SKU, s.Requested, s.Available)
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, "; "))
	}
	if len(e.Drift) > 0 {
		parts := make([]string, len(e.Drift))
		for i, d := range e.Drift {
			parts[i] = fmt.Sprintf("%s expected=%d actual=%d", d.Account, d.Expected, d.Actual)
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, "; "))
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + e.Details[k]
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	return b.String()
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode reports whether err wraps an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func IsValidation(err error) bool           { return HasCode(err, CodeValidation) }
func IsNotFound(err error) bool             { return HasCode(err, CodeNotFound) }
func IsInsufficientResource(err error) bool { return HasCode(err, CodeInsufficientResource) }
func IsInsufficientStock(err error) bool    { return HasCode(err, CodeInsufficientStock) }
func IsInsufficientGold(err error) bool     { return HasCode(err, CodeInsufficientGold) }
func IsCapacityExceeded(err error) bool     { return HasCode(err, CodeCapacityExceeded) }
func IsInvalidState(err error) bool         { return HasCode(err, CodeInvalidState) }
func IsBusy(err error) bool                 { return HasCode(err, CodeBusy) }
func IsInconsistency(err error) bool        { return HasCode(err, CodeInconsistency) }

// Validationf creates a VALIDATION error.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf creates a NOT_FOUND error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidStatef creates an INVALID_STATE error.
func InvalidStatef(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// NewInsufficientResource reports a liquid withdrawal the pool cannot cover.
func NewInsufficientResource(lt LiquidType, requested, available int) *Error {
	return &Error{
		Code:    CodeInsufficientResource,
		Message: fmt.Sprintf("not enough %s liquid", lt),
		Details: map[string]string{
			"liquid":    string(lt),
			"requested": fmt.Sprintf("%d", requested),
			"available": fmt.Sprintf("%d", available),
		},
	}
}

// NewInsufficientGold reports a debit that would make gold negative.
func NewInsufficientGold(requested, available int64) *Error {
	return &Error{
		Code:    CodeInsufficientGold,
		Message: "not enough gold",
		Details: map[string]string{
			"requested": fmt.Sprintf("%d", requested),
			"available": fmt.Sprintf("%d", available),
		},
	}
}

// NewInsufficientStock reports every short line of a checkout.
func NewInsufficientStock(cartID int64, shortages []Shortage) *Error {
	return &Error{
		Code:      CodeInsufficientStock,
		Message:   fmt.Sprintf("cart %d has %d line(s) exceeding stock", cartID, len(shortages)),
		Shortages: shortages,
	}
}

// NewCapacityExceeded reports a potion count that would not fit in storage.
func NewCapacityExceeded(resulting, capacity int) *Error {
	return &Error{
		Code:    CodeCapacityExceeded,
		Message: fmt.Sprintf("potion count %d would exceed capacity %d", resulting, capacity),
		Details: map[string]string{
			"resulting": fmt.Sprintf("%d", resulting),
			"capacity":  fmt.Sprintf("%d", capacity),
		},
	}
}

// NewBusy reports an exhausted optimistic retry budget.
func NewBusy(op string, attempts int) *Error {
	return &Error{
		Code:    CodeBusy,
		Message: fmt.Sprintf("%s: retry budget exhausted after %d attempts", op, attempts),
		Details: map[string]string{
			"op":       op,
			"attempts": fmt.Sprintf("%d", attempts),
		},
	}
}

// NewInconsistency reports ledger/state drift.
func NewInconsistency(msg string, drift []Drift) *Error {
	return &Error{Code: CodeInconsistency, Message: msg, Drift: drift}
}
