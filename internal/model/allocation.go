package model

import "time"

// Order line statuses as reported by the upstream order service.
const (
	LineStatusDraft     = "draft"
	LineStatusAllocated = "allocated"
	LineStatusCompleted = "completed"
)

// OrderLine is the demand side of one allocation: the quantity still to be
// satisfied for a single product/quantity/delivery-date entry of an order.
// RequiredQty is immutable for the lifetime of a reconciliation session.
type OrderLine struct {
	ID           string     `db:"id"`
	OrderID      string     `db:"order_id"`
	MerchantID   string     `db:"merchant_id"`
	ProductID    string     `db:"product_id"`
	RequiredQty  float64    `db:"required_qty"`
	Unit         string     `db:"unit"`
	Status       string     `db:"status"`
	DeliveryDate *time.Time `db:"delivery_date"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// LotCandidate is one allocatable stock source for an order line. FreeQty is
// already net of reservations held by other lines; when IsLocked is set the
// quantity is informational only and allocation attempts must be rejected.
type LotCandidate struct {
	LotID      string     `db:"lot_id" json:"lot_id"`
	LotNumber  string     `db:"lot_number" json:"lot_number"`
	ProductID  string     `db:"product_id" json:"product_id"`
	FreeQty    float64    `db:"free_qty" json:"free_qty"`
	IsLocked   bool       `db:"is_locked" json:"is_locked"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiry_date"`
}

// AllocationEntry is one (lot, quantity) pairing sent to the commit sink.
type AllocationEntry struct {
	LotID    string  `json:"lot_id"`
	Quantity float64 `json:"quantity"`
}

// AllocationRecord is the audit projection of a committed allocation,
// indexed into elasticsearch for traceability searches.
type AllocationRecord struct {
	ID          string                `json:"id"`
	MerchantID  string                `json:"merchant_id"`
	OrderID     string                `json:"order_id"`
	OrderLineID string                `json:"order_line_id"`
	ProductID   string                `json:"product_id"`
	Entries     []AllocationRecordLot `json:"entries"`
	TotalQty    float64               `json:"total_qty"`
	CommittedBy string                `json:"committed_by"`
	CommittedAt time.Time             `json:"committed_at"`
}

type AllocationRecordLot struct {
	LotID     string  `json:"lot_id"`
	LotNumber string  `json:"lot_number"`
	Quantity  float64 `json:"quantity"`
}
