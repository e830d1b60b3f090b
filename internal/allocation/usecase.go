package allocation

import (
	"context"

	"github.com/hanifmhd/erp-allocation-service/internal/allocation/dto"
	"github.com/hanifmhd/erp-allocation-service/internal/model"
)

type UseCase interface {
	// OpenLine starts a reconciliation session for one order line.
	OpenLine(ctx context.Context, input *dto.OpenLineInput) (*dto.LineState, error)
	GetState(ctx context.Context, sessionID string) (*dto.LineState, error)

	// Editing operations. All of them reject while a save is in flight.
	SetQuantity(ctx context.Context, input *dto.SetQuantityInput) (*dto.QuantityResult, error)
	AutoFill(ctx context.Context, input *dto.LotActionInput) (*dto.QuantityResult, error)
	Confirm(ctx context.Context, input *dto.LotActionInput) (*dto.LineState, error)
	Clear(ctx context.Context, input *dto.LotActionInput) (*dto.LineState, error)
	ClearAll(ctx context.Context, sessionID string) (*dto.LineState, error)

	// Save commits the snapshot to the upstream order service.
	Save(ctx context.Context, input *dto.SaveInput) (*dto.LineState, error)

	// SearchHistory queries committed allocations by lot / order line.
	SearchHistory(ctx context.Context, filters *dto.HistoryFilters) ([]model.AllocationRecord, int, error)

	// InvalidateCandidates drops cached candidate lists for a product,
	// used by the stock event listener.
	InvalidateCandidates(ctx context.Context, merchantID, productID string)
}
