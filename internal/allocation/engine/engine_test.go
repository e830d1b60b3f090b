package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanifmhd/erp-allocation-service/internal/model"
)

func lot(freeQty float64, locked bool) model.LotCandidate {
	return model.LotCandidate{LotID: "lot-1", LotNumber: "L-001", FreeQty: freeQty, IsLocked: locked}
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		freeQty        float64
		otherAllocated float64
		requiredQty    float64
		wantQty        float64
		wantWarning    Warning
		wantClamp      bool
	}{
		{name: "empty input means zero", raw: "", freeQty: 20, requiredQty: 100, wantQty: 0},
		{name: "whitespace only means zero", raw: "   ", freeQty: 20, requiredQty: 100, wantQty: 0},
		{name: "valid input accepted as-is", raw: "15", freeQty: 20, requiredQty: 100, wantQty: 15},
		{name: "decimal input accepted", raw: "7.5", freeQty: 20, requiredQty: 100, wantQty: 7.5},
		{name: "boundary equal to free qty", raw: "20", freeQty: 20, requiredQty: 100, wantQty: 20},
		{
			name: "negative forced to zero", raw: "-5", freeQty: 20, requiredQty: 100,
			wantQty: 0, wantWarning: WarningNegative, wantClamp: true,
		},
		{
			name: "clamped to lot when lot is the limit", raw: "50", freeQty: 20, requiredQty: 100,
			wantQty: 20, wantWarning: WarningExceedsLot, wantClamp: true,
		},
		{
			name: "clamped to lot when requirement is the limit", raw: "50", freeQty: 20,
			otherAllocated: 90, requiredQty: 100,
			wantQty: 20, wantWarning: WarningExceedsRequirement, wantClamp: true,
		},
		{
			name: "zero free qty always yields zero", raw: "999", freeQty: 0, requiredQty: 100,
			wantQty: 0, wantWarning: WarningExceedsLot, wantClamp: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateInput(tt.raw, lot(tt.freeQty, false), tt.otherAllocated, tt.requiredQty)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, res.AcceptedQty)
			assert.Equal(t, tt.wantWarning, res.Warning)
			assert.Equal(t, tt.wantClamp, res.DidClamp)
		})
	}
}

func TestValidateInputRejections(t *testing.T) {
	t.Run("non-numeric input is rejected", func(t *testing.T) {
		for _, raw := range []string{"abc", "1,5", "12x", "--3"} {
			_, err := ValidateInput(raw, lot(20, false), 0, 100)
			require.ErrorIs(t, err, ErrNotNumeric, "input %q", raw)
		}
	})

	t.Run("NaN and Inf are rejected", func(t *testing.T) {
		for _, raw := range []string{"NaN", "Inf", "-Inf"} {
			_, err := ValidateInput(raw, lot(20, false), 0, 100)
			require.ErrorIs(t, err, ErrNotNumeric, "input %q", raw)
		}
	})

	t.Run("locked lot rejects any input", func(t *testing.T) {
		_, err := ValidateInput("5", lot(20, true), 0, 100)
		require.ErrorIs(t, err, ErrLotLocked)
	})
}

// Validator bounds: the accepted quantity never leaves [0, freeQty].
func TestValidateInputBounds(t *testing.T) {
	inputs := []string{"-100", "-0.01", "0", "0.5", "19.99", "20", "20.01", "1000000"}
	freeQtys := []float64{0, 1, 20, 3.5}

	for _, freeQty := range freeQtys {
		for _, raw := range inputs {
			res, err := ValidateInput(raw, lot(freeQty, false), 10, 50)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.AcceptedQty, 0.0, "freeQty=%v raw=%q", freeQty, raw)
			assert.LessOrEqual(t, res.AcceptedQty, freeQty, "freeQty=%v raw=%q", freeQty, raw)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name        string
		total       float64
		required    float64
		isConfirmed bool
		lineStatus  string
		want        Status
	}{
		{name: "nothing allocated", total: 0, required: 100, want: StatusUnallocated},
		{name: "partial allocation", total: 50, required: 100, want: StatusPartial},
		{name: "over allocation", total: 110, required: 100, want: StatusOverAllocated},
		{name: "over allocation wins over confirmed line", total: 110, required: 100, lineStatus: model.LineStatusAllocated, want: StatusOverAllocated},
		{name: "complete without confirmation is draft", total: 100, required: 100, want: StatusDraft},
		{name: "complete with user confirmation", total: 100, required: 100, isConfirmed: true, want: StatusConfirmed},
		{name: "complete on allocated line", total: 100, required: 100, lineStatus: model.LineStatusAllocated, want: StatusConfirmed},
		{name: "complete on completed line", total: 100, required: 100, lineStatus: model.LineStatusCompleted, want: StatusConfirmed},
		{name: "zero requirement zero total", total: 0, required: 0, want: StatusUnallocated},
		{name: "zero requirement with allocation is over", total: 1, required: 0, want: StatusOverAllocated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.total, tt.required, tt.isConfirmed, tt.lineStatus)
			assert.Equal(t, tt.want, got)
		})
	}
}

// overAllocated is returned iff total > required, for any flag combination.
func TestDeriveStatusOverAllocatedIff(t *testing.T) {
	totals := []float64{0, 10, 99.9, 100, 100.1, 250}
	flags := []bool{true, false}
	statuses := []string{"", model.LineStatusDraft, model.LineStatusAllocated, model.LineStatusCompleted}

	for _, total := range totals {
		for _, confirmed := range flags {
			for _, ls := range statuses {
				got := DeriveStatus(total, 100, confirmed, ls)
				if total > 100 {
					assert.Equal(t, StatusOverAllocated, got, "total=%v", total)
				} else {
					assert.NotEqual(t, StatusOverAllocated, got, "total=%v confirmed=%v line=%q", total, confirmed, ls)
				}
			}
		}
	}
}

// A zero-requirement line is never partial or confirmed.
func TestDeriveStatusZeroRequirement(t *testing.T) {
	for _, total := range []float64{0, 1, 50} {
		got := DeriveStatus(total, 0, true, model.LineStatusAllocated)
		assert.NotEqual(t, StatusPartial, got, fmt.Sprintf("total=%v", total))
		assert.NotEqual(t, StatusConfirmed, got, fmt.Sprintf("total=%v", total))
	}
}

func TestAutoFill(t *testing.T) {
	tests := []struct {
		name           string
		freeQty        float64
		otherAllocated float64
		requiredQty    float64
		wantFill       float64
		wantSatisfied  bool
	}{
		{name: "lot smaller than shortfall fills to lot", freeQty: 50, requiredQty: 100, wantFill: 50},
		{name: "lot covers shortfall exactly", freeQty: 100, requiredQty: 100, wantFill: 100},
		{name: "lot larger than shortfall fills shortfall", freeQty: 80, otherAllocated: 60, requiredQty: 100, wantFill: 40},
		{name: "requirement already satisfied", freeQty: 50, otherAllocated: 100, requiredQty: 100, wantFill: 0, wantSatisfied: true},
		{name: "over-allocated elsewhere still satisfied", freeQty: 50, otherAllocated: 130, requiredQty: 100, wantFill: 0, wantSatisfied: true},
		{name: "empty lot fills nothing", freeQty: 0, requiredQty: 100, wantFill: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fill, satisfied, err := AutoFill(lot(tt.freeQty, false), tt.otherAllocated, tt.requiredQty)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFill, fill)
			assert.Equal(t, tt.wantSatisfied, satisfied)
		})
	}

	t.Run("locked lot is rejected", func(t *testing.T) {
		_, _, err := AutoFill(lot(50, true), 0, 100)
		require.ErrorIs(t, err, ErrLotLocked)
	})
}

// Auto-fill is computed from the other lots' total, not by incrementing the
// current quantity, so repeated calls yield the same fill.
func TestAutoFillIdempotent(t *testing.T) {
	candidate := lot(60, false)

	first, _, err := AutoFill(candidate, 30, 100)
	require.NoError(t, err)
	second, _, err := AutoFill(candidate, 30, 100)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 60.0, first)
}
