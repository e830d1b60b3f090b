package allocation

import "errors"

var (
	ErrSessionNotFound   = errors.New("allocation session not found")
	ErrOrderLineNotFound = errors.New("order line not found")
	// ErrZeroRequirement: lines with nothing left to satisfy are out of
	// scope for allocation; no session is opened for them.
	ErrZeroRequirement = errors.New("order line has no outstanding requirement")
	// ErrSaveBusy: another instance holds the commit lock for this line.
	ErrSaveBusy = errors.New("another save is in progress for this order line")
	// ErrStockConflict: the upstream rejected the commit because lot
	// availability changed concurrently. Candidates should be re-fetched.
	ErrStockConflict = errors.New("lot availability changed, allocation rejected")
)
