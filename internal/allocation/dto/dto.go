package dto

import (
	"time"

	"github.com/hanifmhd/erp-allocation-service/internal/allocation/engine"
)

// ShakeDurationMS is how long the client should show the clamp indicator.
// Sent with every clamped validation so UIs don't hard-code the timer.
const ShakeDurationMS = 500

// LotRow is one candidate lot joined with the quantity entered on it.
type LotRow struct {
	LotID      string     `json:"lot_id"`
	LotNumber  string     `json:"lot_number"`
	FreeQty    float64    `json:"free_qty"`
	IsLocked   bool       `json:"is_locked"`
	ExpiryDate *time.Time `json:"expiry_date"`
	Quantity   float64    `json:"quantity"`
	Confirmed  bool       `json:"confirmed"`
}

// LineState is the full reconciliation view of one order line.
type LineState struct {
	SessionID      string        `json:"session_id"`
	OrderLineID    string        `json:"order_line_id"`
	OrderID        string        `json:"order_id"`
	ProductID      string        `json:"product_id"`
	Unit           string        `json:"unit"`
	RequiredQty    float64       `json:"required_qty"`
	TotalAllocated float64       `json:"total_allocated"`
	RemainingQty   float64       `json:"remaining_qty"`
	Status         engine.Status `json:"status"`
	Saving         bool          `json:"saving"`
	Lots           []LotRow      `json:"lots"`
}

// QuantityResult reports one validated edit or auto-fill.
type QuantityResult struct {
	AcceptedQty      float64    `json:"accepted_qty"`
	Warning          string     `json:"warning,omitempty"`
	DidClamp         bool       `json:"did_clamp"`
	ShakeMS          int        `json:"shake_ms,omitempty"`
	AlreadySatisfied bool       `json:"already_satisfied,omitempty"`
	State            *LineState `json:"state"`
}
