package dto

type OpenLineInput struct {
	OrderLineID string
	MerchantID  string
	UserID      string
}

type SetQuantityInput struct {
	SessionID   string
	LotID       string
	RawQuantity string
}

type LotActionInput struct {
	SessionID string
	LotID     string
}

type SaveInput struct {
	SessionID string
	UserID    string
}

type HistoryFilters struct {
	MerchantID  string
	OrderLineID string
	LotNumber   string
	Page        int
	PageSize    int
}
