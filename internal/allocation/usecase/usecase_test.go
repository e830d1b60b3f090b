package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanifmhd/erp-allocation-service/internal/allocation"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation/dto"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation/engine"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation/session"
	"github.com/hanifmhd/erp-allocation-service/internal/model"
	"github.com/hanifmhd/erp-allocation-service/pkg/logger"
)

type fakeRepo struct {
	lines      map[string]model.OrderLine
	candidates []model.LotCandidate
	listCalls  int
}

func (r *fakeRepo) GetOrderLine(ctx context.Context, id string) (*model.OrderLine, error) {
	line, ok := r.lines[id]
	if !ok {
		return nil, nil
	}
	return &line, nil
}

func (r *fakeRepo) ListCandidates(ctx context.Context, merchantID, productID string) ([]model.LotCandidate, error) {
	r.listCalls++
	return r.candidates, nil
}

type fakeSink struct {
	err      error
	calls    int
	received []model.AllocationEntry
}

func (s *fakeSink) CommitAllocations(ctx context.Context, line *model.OrderLine, entries []model.AllocationEntry, committedBy string) error {
	s.calls++
	s.received = entries
	if s.err != nil {
		return s.err
	}
	return nil
}

func newTestUseCase(repo *fakeRepo, sink *fakeSink) allocation.UseCase {
	log := logger.NewZapLogger(&logger.ZapLoggerConfig{Level: "error", Encoding: "console"})
	return NewAllocationUseCase(repo, sink, session.NewStore(), nil, nil, log)
}

func defaultRepo() *fakeRepo {
	return &fakeRepo{
		lines: map[string]model.OrderLine{
			"line-1": {
				ID:          "line-1",
				OrderID:     "order-1",
				MerchantID:  "m-1",
				ProductID:   "p-1",
				RequiredQty: 100,
				Status:      model.LineStatusDraft,
			},
			"line-empty": {
				ID:          "line-empty",
				MerchantID:  "m-1",
				ProductID:   "p-1",
				RequiredQty: 0,
			},
		},
		candidates: []model.LotCandidate{
			{LotID: "lot-a", LotNumber: "L-A", ProductID: "p-1", FreeQty: 60},
			{LotID: "lot-b", LotNumber: "L-B", ProductID: "p-1", FreeQty: 50},
		},
	}
}

func openLine(t *testing.T, uc allocation.UseCase) *dto.LineState {
	t.Helper()
	state, err := uc.OpenLine(context.Background(), &dto.OpenLineInput{OrderLineID: "line-1", MerchantID: "m-1", UserID: "u-1"})
	require.NoError(t, err)
	return state
}

func TestOpenLine(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})

	state := openLine(t, uc)
	assert.Equal(t, "line-1", state.OrderLineID)
	assert.Equal(t, 100.0, state.RequiredQty)
	assert.Equal(t, engine.StatusUnallocated, state.Status)
	require.Len(t, state.Lots, 2)
	assert.Equal(t, "lot-a", state.Lots[0].LotID)
}

func TestOpenLineNotFound(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})
	_, err := uc.OpenLine(context.Background(), &dto.OpenLineInput{OrderLineID: "nope"})
	require.ErrorIs(t, err, allocation.ErrOrderLineNotFound)
}

func TestOpenLineZeroRequirement(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})
	_, err := uc.OpenLine(context.Background(), &dto.OpenLineInput{OrderLineID: "line-empty"})
	require.ErrorIs(t, err, allocation.ErrZeroRequirement)
}

// Typing "-5" yields 0, the negative warning and the shake signal.
func TestSetQuantityNegativeInput(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})
	state := openLine(t, uc)

	result, err := uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
		SessionID: state.SessionID, LotID: "lot-a", RawQuantity: "-5",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.AcceptedQty)
	assert.Equal(t, string(engine.WarningNegative), result.Warning)
	assert.True(t, result.DidClamp)
	assert.Equal(t, dto.ShakeDurationMS, result.ShakeMS)
}

func TestSetQuantityClampPropagatesShake(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})
	state := openLine(t, uc)

	result, err := uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
		SessionID: state.SessionID, LotID: "lot-a", RawQuantity: "150",
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, result.AcceptedQty)
	assert.True(t, result.DidClamp)
	assert.Equal(t, dto.ShakeDurationMS, result.ShakeMS)

	clean, err := uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
		SessionID: state.SessionID, LotID: "lot-a", RawQuantity: "30",
	})
	require.NoError(t, err)
	assert.False(t, clean.DidClamp)
	assert.Zero(t, clean.ShakeMS)
}

func TestSaveCommitsOnlyPositiveEntries(t *testing.T) {
	repo := defaultRepo()
	sink := &fakeSink{}
	uc := newTestUseCase(repo, sink)
	state := openLine(t, uc)

	_, err := uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
		SessionID: state.SessionID, LotID: "lot-a", RawQuantity: "60",
	})
	require.NoError(t, err)
	_, err = uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
		SessionID: state.SessionID, LotID: "lot-b", RawQuantity: "20",
	})
	require.NoError(t, err)
	_, err = uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
		SessionID: state.SessionID, LotID: "lot-b", RawQuantity: "",
	})
	require.NoError(t, err)

	listCallsBefore := repo.listCalls
	saved, err := uc.Save(context.Background(), &dto.SaveInput{SessionID: state.SessionID, UserID: "u-1"})
	require.NoError(t, err)

	require.Equal(t, 1, sink.calls)
	require.Len(t, sink.received, 1)
	assert.Equal(t, model.AllocationEntry{LotID: "lot-a", Quantity: 60}, sink.received[0])

	assert.False(t, saved.Saving)
	assert.Equal(t, engine.StatusPartial, saved.Status)
	assert.Greater(t, repo.listCalls, listCallsBefore, "candidates are refreshed after commit")
}

// Completing the requirement and saving flips the badge to confirmed via
// the server-reported line status.
func TestSaveCompleteLineBecomesConfirmed(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})
	state := openLine(t, uc)

	for lotID, qty := range map[string]string{"lot-a": "60", "lot-b": "40"} {
		_, err := uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
			SessionID: state.SessionID, LotID: lotID, RawQuantity: qty,
		})
		require.NoError(t, err)
	}

	before, err := uc.GetState(context.Background(), state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusDraft, before.Status)

	saved, err := uc.Save(context.Background(), &dto.SaveInput{SessionID: state.SessionID})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusConfirmed, saved.Status)
}

func TestSaveBlockedWhileOverAllocated(t *testing.T) {
	sink := &fakeSink{}
	uc := newTestUseCase(defaultRepo(), sink)
	state := openLine(t, uc)

	for lotID, qty := range map[string]string{"lot-a": "60", "lot-b": "50"} {
		_, err := uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
			SessionID: state.SessionID, LotID: lotID, RawQuantity: qty,
		})
		require.NoError(t, err)
	}

	_, err := uc.Save(context.Background(), &dto.SaveInput{SessionID: state.SessionID})
	require.ErrorIs(t, err, session.ErrOverAllocated)
	assert.Zero(t, sink.calls)
}

// A failed commit leaves entries untouched and re-enables editing.
func TestSaveFailureKeepsEntries(t *testing.T) {
	sink := &fakeSink{err: errors.New("order service unavailable")}
	uc := newTestUseCase(defaultRepo(), sink)
	state := openLine(t, uc)

	_, err := uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
		SessionID: state.SessionID, LotID: "lot-a", RawQuantity: "40",
	})
	require.NoError(t, err)

	_, err = uc.Save(context.Background(), &dto.SaveInput{SessionID: state.SessionID})
	require.Error(t, err)

	after, err := uc.GetState(context.Background(), state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, after.TotalAllocated)
	assert.False(t, after.Saving)

	// Retry succeeds once the sink recovers.
	sink.err = nil
	_, err = uc.Save(context.Background(), &dto.SaveInput{SessionID: state.SessionID})
	require.NoError(t, err)
}

func TestSaveStockConflict(t *testing.T) {
	sink := &fakeSink{err: allocation.ErrStockConflict}
	uc := newTestUseCase(defaultRepo(), sink)
	state := openLine(t, uc)

	_, err := uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
		SessionID: state.SessionID, LotID: "lot-a", RawQuantity: "40",
	})
	require.NoError(t, err)

	_, err = uc.Save(context.Background(), &dto.SaveInput{SessionID: state.SessionID})
	require.ErrorIs(t, err, allocation.ErrStockConflict)
}

func TestGetStateUnknownSession(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})
	_, err := uc.GetState(context.Background(), "missing")
	require.ErrorIs(t, err, allocation.ErrSessionNotFound)
}

func TestClearAllAndClear(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})
	state := openLine(t, uc)

	_, err := uc.ClearAll(context.Background(), state.SessionID)
	require.ErrorIs(t, err, session.ErrNothingAllocated)

	_, err = uc.SetQuantity(context.Background(), &dto.SetQuantityInput{
		SessionID: state.SessionID, LotID: "lot-a", RawQuantity: "25",
	})
	require.NoError(t, err)

	cleared, err := uc.Clear(context.Background(), &dto.LotActionInput{SessionID: state.SessionID, LotID: "lot-a"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, cleared.TotalAllocated)
	assert.Equal(t, engine.StatusUnallocated, cleared.Status)
}

func TestSearchHistoryWithoutElastic(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})
	records, total, err := uc.SearchHistory(context.Background(), &dto.HistoryFilters{MerchantID: "m-1"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, total)
}

func TestInvalidateCandidatesWithoutCache(t *testing.T) {
	uc := newTestUseCase(defaultRepo(), &fakeSink{})
	// Must not panic with caching disabled.
	uc.InvalidateCandidates(context.Background(), "m-1", "p-1")
}
