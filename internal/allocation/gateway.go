package allocation

import (
	"context"

	"github.com/hanifmhd/erp-allocation-service/internal/model"
)

// CommitSink persists one line's allocation snapshot in the upstream order
// service. The commit is atomic from this side: either the whole snapshot
// is accepted or the attempt failed. No partial per-lot acknowledgement,
// no automatic retry.
type CommitSink interface {
	CommitAllocations(ctx context.Context, line *model.OrderLine, entries []model.AllocationEntry, committedBy string) error
}
