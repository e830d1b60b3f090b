package allocation

import (
	"context"

	"github.com/hanifmhd/erp-allocation-service/internal/model"
)

// Repository is the lot-candidate read model. The schema is owned by the
// upstream ERP; this service only reads it.
type Repository interface {
	// GetOrderLine returns nil, nil when the line does not exist.
	GetOrderLine(ctx context.Context, id string) (*model.OrderLine, error)
	// ListCandidates returns allocatable lots for a product in FEFO
	// display order (earliest expiry first, open-ended expiry last).
	ListCandidates(ctx context.Context, merchantID, productID string) ([]model.LotCandidate, error)
}
