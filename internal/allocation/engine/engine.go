// Package engine holds the pure lot-allocation arithmetic: input validation,
// reconciliation status derivation and the shortfall auto-fill. Everything
// here is side-effect free; session state and persistence live elsewhere.
package engine

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/hanifmhd/erp-allocation-service/internal/model"
)

// Status is the reconciliation state of one order line.
type Status string

const (
	StatusOverAllocated Status = "overAllocated"
	StatusConfirmed     Status = "confirmed"
	StatusDraft         Status = "draft"
	StatusPartial       Status = "partial"
	StatusUnallocated   Status = "unallocated"
)

// Warning classifies a clamped or coerced input. The warning never changes
// the numeric outcome, only the message shown to the user.
type Warning string

const (
	WarningNegative           Warning = "negative"
	WarningExceedsLot         Warning = "exceedsLot"
	WarningExceedsRequirement Warning = "exceedsRequirement"
)

var (
	// ErrNotNumeric means the raw input could not be parsed; callers must
	// leave the current quantity untouched.
	ErrNotNumeric = errors.New("quantity input is not numeric")
	// ErrLotLocked means the lot is quarantined and cannot take allocations.
	ErrLotLocked = errors.New("lot is locked")
)

// ValidationResult is the outcome of validating one user-entered quantity.
type ValidationResult struct {
	AcceptedQty float64
	Warning     Warning
	DidClamp    bool
}

// ValidateInput clamps a raw per-lot quantity against the lot's free
// quantity. otherAllocated is the total already allocated on the line's
// other lots; together with requiredQty it only selects the warning text,
// never the accepted value.
//
// Guarantees: 0 <= AcceptedQty <= lot.FreeQty.
func ValidateInput(raw string, lot model.LotCandidate, otherAllocated, requiredQty float64) (ValidationResult, error) {
	if lot.IsLocked {
		return ValidationResult{}, ErrLotLocked
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ValidationResult{AcceptedQty: 0}, nil
	}

	qty, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return ValidationResult{}, ErrNotNumeric
	}

	if qty < 0 {
		return ValidationResult{AcceptedQty: 0, Warning: WarningNegative, DidClamp: true}, nil
	}

	if qty > lot.FreeQty {
		warning := WarningExceedsLot
		if remaining := requiredQty - otherAllocated; remaining < lot.FreeQty {
			// The line's outstanding requirement, not the lot, is the
			// tighter bound; word the warning accordingly.
			warning = WarningExceedsRequirement
		}
		return ValidationResult{AcceptedQty: lot.FreeQty, Warning: warning, DidClamp: true}, nil
	}

	return ValidationResult{AcceptedQty: qty}, nil
}

// DeriveStatus maps the line's totals to exactly one reconciliation state.
// First match wins:
//
//  1. total > required            -> overAllocated
//  2. total == required, required > 0
//     -> confirmed when the server already reports the line allocated or
//     completed, or when the user had confirmed every lot at the moment
//     the line became complete; draft otherwise
//  3. 0 < total < required        -> partial
//  4. total == 0                  -> unallocated
//
// A zero-requirement line is never confirmed/draft/partial; callers treat
// those lines as out of scope for allocation.
func DeriveStatus(totalAllocated, requiredQty float64, isConfirmed bool, lineStatus string) Status {
	switch {
	case totalAllocated > requiredQty:
		return StatusOverAllocated
	case totalAllocated == requiredQty && requiredQty > 0:
		if lineStatus == model.LineStatusAllocated || lineStatus == model.LineStatusCompleted || isConfirmed {
			return StatusConfirmed
		}
		return StatusDraft
	case totalAllocated > 0:
		return StatusPartial
	default:
		return StatusUnallocated
	}
}

// AutoFill computes the quantity that closes the line's remaining shortfall
// from the given lot. The fill is derived from the other lots' total, not by
// incrementing the lot's current quantity, so repeated calls with an
// unchanged candidate set are idempotent. satisfied reports that the
// requirement was already met and the call is a no-op.
func AutoFill(lot model.LotCandidate, otherAllocated, requiredQty float64) (fillQty float64, satisfied bool, err error) {
	if lot.IsLocked {
		return 0, false, ErrLotLocked
	}

	needed := requiredQty - otherAllocated
	if needed < 0 {
		needed = 0
	}

	fillQty = math.Min(lot.FreeQty, needed)
	return fillQty, needed == 0, nil
}
