package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hanifmhd/erp-allocation-service/internal/allocation"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation/dto"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation/session"
	"github.com/hanifmhd/erp-allocation-service/internal/model"
	"github.com/hanifmhd/erp-allocation-service/pkg/cache"
	"github.com/hanifmhd/erp-allocation-service/pkg/logger"
	"github.com/hanifmhd/erp-allocation-service/pkg/search"
)

const (
	candidateCacheTTL = 5 * time.Minute
	commitLockTTL     = 30 * time.Second
	historyIndex      = "allocations"
)

const historyMapping = `{
	"mappings": {
		"properties": {
			"merchant_id": { "type": "keyword" },
			"order_id": { "type": "keyword" },
			"order_line_id": { "type": "keyword" },
			"product_id": { "type": "keyword" },
			"entries": {
				"properties": {
					"lot_id": { "type": "keyword" },
					"lot_number": { "type": "keyword" },
					"quantity": { "type": "double" }
				}
			},
			"total_qty": { "type": "double" },
			"committed_by": { "type": "keyword" },
			"committed_at": { "type": "date" }
		}
	}
}`

type allocationUseCase struct {
	repo   allocation.Repository
	sink   allocation.CommitSink
	store  *session.Store
	cache  *cache.RedisClient
	es     *search.Client
	logger logger.ZapLogger
}

func NewAllocationUseCase(
	repo allocation.Repository,
	sink allocation.CommitSink,
	store *session.Store,
	cacheClient *cache.RedisClient,
	es *search.Client,
	log logger.ZapLogger,
) allocation.UseCase {
	return &allocationUseCase{
		repo:   repo,
		sink:   sink,
		store:  store,
		cache:  cacheClient,
		es:     es,
		logger: log,
	}
}

func (uc *allocationUseCase) OpenLine(ctx context.Context, input *dto.OpenLineInput) (*dto.LineState, error) {
	line, err := uc.repo.GetOrderLine(ctx, input.OrderLineID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, allocation.ErrOrderLineNotFound
	}
	if line.RequiredQty <= 0 {
		return nil, allocation.ErrZeroRequirement
	}

	candidates, err := uc.loadCandidates(ctx, line.MerchantID, line.ProductID)
	if err != nil {
		return nil, err
	}

	s := session.NewLineSession(*line, candidates)
	uc.store.Put(s)

	uc.logger.Info("opened allocation session",
		zap.String("session_id", s.ID),
		zap.String("order_line_id", line.ID),
		zap.Int("candidates", len(candidates)),
	)

	return toLineState(s), nil
}

func (uc *allocationUseCase) GetState(ctx context.Context, sessionID string) (*dto.LineState, error) {
	s, ok := uc.store.Get(sessionID)
	if !ok {
		return nil, allocation.ErrSessionNotFound
	}
	return toLineState(s), nil
}

func (uc *allocationUseCase) SetQuantity(ctx context.Context, input *dto.SetQuantityInput) (*dto.QuantityResult, error) {
	s, ok := uc.store.Get(input.SessionID)
	if !ok {
		return nil, allocation.ErrSessionNotFound
	}

	res, err := s.SetQuantity(input.LotID, input.RawQuantity)
	if err != nil {
		return nil, err
	}

	result := &dto.QuantityResult{
		AcceptedQty: res.AcceptedQty,
		Warning:     string(res.Warning),
		DidClamp:    res.DidClamp,
		State:       toLineState(s),
	}
	if res.DidClamp {
		result.ShakeMS = dto.ShakeDurationMS
	}
	return result, nil
}

func (uc *allocationUseCase) AutoFill(ctx context.Context, input *dto.LotActionInput) (*dto.QuantityResult, error) {
	s, ok := uc.store.Get(input.SessionID)
	if !ok {
		return nil, allocation.ErrSessionNotFound
	}

	fillQty, satisfied, err := s.AutoFill(input.LotID)
	if err != nil {
		return nil, err
	}

	return &dto.QuantityResult{
		AcceptedQty:      fillQty,
		AlreadySatisfied: satisfied,
		State:            toLineState(s),
	}, nil
}

func (uc *allocationUseCase) Confirm(ctx context.Context, input *dto.LotActionInput) (*dto.LineState, error) {
	s, ok := uc.store.Get(input.SessionID)
	if !ok {
		return nil, allocation.ErrSessionNotFound
	}
	if err := s.Confirm(input.LotID); err != nil {
		return nil, err
	}
	return toLineState(s), nil
}

func (uc *allocationUseCase) Clear(ctx context.Context, input *dto.LotActionInput) (*dto.LineState, error) {
	s, ok := uc.store.Get(input.SessionID)
	if !ok {
		return nil, allocation.ErrSessionNotFound
	}
	if err := s.Clear(input.LotID); err != nil {
		return nil, err
	}
	return toLineState(s), nil
}

func (uc *allocationUseCase) ClearAll(ctx context.Context, sessionID string) (*dto.LineState, error) {
	s, ok := uc.store.Get(sessionID)
	if !ok {
		return nil, allocation.ErrSessionNotFound
	}
	if err := s.ClearAll(); err != nil {
		return nil, err
	}
	return toLineState(s), nil
}

// Save commits the line's snapshot to the order service. Guards: session
// must not be over-allocated, no local save in flight, and the cross-
// instance redis lock for the line must be free. On failure the entries
// stay untouched so the user can retry or adjust.
func (uc *allocationUseCase) Save(ctx context.Context, input *dto.SaveInput) (*dto.LineState, error) {
	s, ok := uc.store.Get(input.SessionID)
	if !ok {
		return nil, allocation.ErrSessionNotFound
	}

	if err := s.BeginSave(); err != nil {
		return nil, err
	}

	line := s.Line()

	if uc.cache != nil {
		lockKey := fmt.Sprintf("lock:allocation:%s", line.ID)
		lockValue := uuid.New().String()

		acquired := false
		for i := 0; i < 3; i++ {
			ok, err := uc.cache.AcquireLock(ctx, lockKey, lockValue, commitLockTTL)
			if err != nil {
				uc.logger.Error("failed to acquire allocation lock", zap.Error(err))
			}
			if ok {
				acquired = true
				break
			}
			time.Sleep(100 * time.Millisecond)
		}

		if !acquired {
			s.EndSave(false)
			return nil, allocation.ErrSaveBusy
		}
		defer uc.cache.ReleaseLock(ctx, lockKey, lockValue)
	}

	entries := s.Snapshot()
	if err := uc.sink.CommitAllocations(ctx, &line, entries, input.UserID); err != nil {
		s.EndSave(false)
		uc.logger.Error("allocation commit failed",
			zap.String("order_line_id", line.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.EndSave(true)
	uc.logger.Info("allocation committed",
		zap.String("order_line_id", line.ID),
		zap.Int("lots", len(entries)),
	)

	// Record the committed snapshot before the candidate refresh below
	// replaces the lot views.
	record := buildRecord(s, entries, input.UserID)

	// freeQty moved on the server; refresh the candidate view.
	uc.InvalidateCandidates(ctx, line.MerchantID, line.ProductID)
	if candidates, err := uc.loadCandidates(ctx, line.MerchantID, line.ProductID); err != nil {
		uc.logger.Warn("failed to refresh candidates after commit", zap.Error(err))
	} else {
		s.RefreshCandidates(candidates)
	}

	go uc.indexHistory(context.Background(), record)

	return toLineState(s), nil
}

func (uc *allocationUseCase) SearchHistory(ctx context.Context, filters *dto.HistoryFilters) ([]model.AllocationRecord, int, error) {
	if uc.es == nil {
		return nil, 0, nil
	}

	must := []map[string]interface{}{}
	if filters.MerchantID != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"merchant_id": filters.MerchantID},
		})
	}
	if filters.OrderLineID != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"order_line_id": filters.OrderLineID},
		})
	}
	if filters.LotNumber != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"entries.lot_number": filters.LotNumber},
		})
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	size := filters.PageSize
	if size <= 0 {
		size = 20
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"sort": []map[string]interface{}{
			{"committed_at": map[string]interface{}{"order": "desc"}},
		},
		"from": (page - 1) * size,
		"size": size,
	}

	res, err := uc.es.Search(ctx, historyIndex, query)
	if err != nil {
		return nil, 0, err
	}

	records := make([]model.AllocationRecord, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var rec model.AllocationRecord
		if err := json.Unmarshal(hit.Source, &rec); err == nil {
			records = append(records, rec)
		}
	}
	return records, res.Hits.Total.Value, nil
}

func (uc *allocationUseCase) InvalidateCandidates(ctx context.Context, merchantID, productID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Client.Del(ctx, candidateCacheKey(merchantID, productID)).Err(); err != nil {
		uc.logger.Error("failed to invalidate candidate cache",
			zap.String("product_id", productID),
			zap.Error(err),
		)
	}
}

func (uc *allocationUseCase) loadCandidates(ctx context.Context, merchantID, productID string) ([]model.LotCandidate, error) {
	key := candidateCacheKey(merchantID, productID)

	if uc.cache != nil {
		if val, err := uc.cache.Client.Get(ctx, key).Result(); err == nil {
			var cached []model.LotCandidate
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		}
	}

	candidates, err := uc.repo.ListCandidates(ctx, merchantID, productID)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if data, err := json.Marshal(candidates); err == nil {
			uc.cache.Client.Set(ctx, key, data, candidateCacheTTL)
		}
	}
	return candidates, nil
}

func (uc *allocationUseCase) indexHistory(ctx context.Context, record *model.AllocationRecord) {
	if uc.es == nil || record == nil {
		return
	}

	_ = uc.es.CreateIndex(ctx, historyIndex, historyMapping)

	if err := uc.es.Index(ctx, historyIndex, record.ID, record); err != nil {
		uc.logger.Error("failed to index allocation record",
			zap.String("order_line_id", record.OrderLineID),
			zap.Error(err),
		)
	}
}

func buildRecord(s *session.LineSession, entries []model.AllocationEntry, committedBy string) *model.AllocationRecord {
	line := s.Line()

	lotNumbers := make(map[string]string)
	for _, v := range s.Lots() {
		lotNumbers[v.Candidate.LotID] = v.Candidate.LotNumber
	}

	record := &model.AllocationRecord{
		ID:          uuid.New().String(),
		MerchantID:  line.MerchantID,
		OrderID:     line.OrderID,
		OrderLineID: line.ID,
		ProductID:   line.ProductID,
		CommittedBy: committedBy,
		CommittedAt: time.Now(),
	}
	for _, e := range entries {
		record.Entries = append(record.Entries, model.AllocationRecordLot{
			LotID:     e.LotID,
			LotNumber: lotNumbers[e.LotID],
			Quantity:  e.Quantity,
		})
		record.TotalQty += e.Quantity
	}
	return record
}

func candidateCacheKey(merchantID, productID string) string {
	return fmt.Sprintf("lots:candidates:%s:%s", merchantID, productID)
}

func toLineState(s *session.LineSession) *dto.LineState {
	line := s.Line()

	state := &dto.LineState{
		SessionID:      s.ID,
		OrderLineID:    line.ID,
		OrderID:        line.OrderID,
		ProductID:      line.ProductID,
		Unit:           line.Unit,
		RequiredQty:    line.RequiredQty,
		TotalAllocated: s.TotalAllocated(),
		RemainingQty:   s.RemainingQty(),
		Status:         s.Status(),
		Saving:         s.Saving(),
	}

	for _, v := range s.Lots() {
		state.Lots = append(state.Lots, dto.LotRow{
			LotID:      v.Candidate.LotID,
			LotNumber:  v.Candidate.LotNumber,
			FreeQty:    v.Candidate.FreeQty,
			IsLocked:   v.Candidate.IsLocked,
			ExpiryDate: v.Candidate.ExpiryDate,
			Quantity:   v.Quantity,
			Confirmed:  v.Confirmed,
		})
	}
	return state
}
