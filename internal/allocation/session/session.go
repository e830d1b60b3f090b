// Package session owns the mutable per-order-line allocation state. One
// LineSession corresponds to one open reconciliation screen: it holds the
// lot quantity map, the per-lot confirm marker and the save-in-flight flag,
// and delegates every numeric decision to the engine package.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hanifmhd/erp-allocation-service/internal/allocation/engine"
	"github.com/hanifmhd/erp-allocation-service/internal/model"
)

var (
	// ErrSaveInFlight rejects edits while a commit is outstanding so a
	// stale snapshot can never race a newer one.
	ErrSaveInFlight = errors.New("a save is in flight for this order line")
	// ErrUnknownLot means the lot is not part of the candidate set.
	ErrUnknownLot = errors.New("lot is not an allocation candidate for this line")
	// ErrOverAllocated blocks saving while the line total exceeds the
	// requirement.
	ErrOverAllocated = errors.New("line is over-allocated")
	// ErrNothingAllocated guards clear-all and save when no quantity is
	// entered.
	ErrNothingAllocated = errors.New("no quantity allocated on this line")
	// ErrNothingToConfirm rejects confirming a lot with zero quantity.
	ErrNothingToConfirm = errors.New("lot has no quantity to confirm")
)

// ConfirmState is the explicit per-lot confirmation marker. It replaces the
// component-local boolean the UI used to carry, so quantity edits and
// confirmation can never drift apart.
type ConfirmState uint8

const (
	Unset ConfirmState = iota
	UserConfirmed
)

type entry struct {
	quantity float64
	confirm  ConfirmState
}

// LotView is a read-only row of session state joined with its candidate.
type LotView struct {
	Candidate model.LotCandidate
	Quantity  float64
	Confirmed bool
}

// LineSession is the allocation aggregate for one order line. All methods
// are safe for concurrent use; the line itself is only mutated through the
// session.
type LineSession struct {
	ID string

	mu         sync.Mutex
	line       model.OrderLine
	candidates []model.LotCandidate
	byLot      map[string]model.LotCandidate
	entries    map[string]*entry
	saving     bool
	touchedAt  time.Time
}

func NewLineSession(line model.OrderLine, candidates []model.LotCandidate) *LineSession {
	s := &LineSession{
		ID:        uuid.New().String(),
		line:      line,
		entries:   make(map[string]*entry),
		touchedAt: time.Now(),
	}
	s.setCandidates(candidates)
	return s
}

func (s *LineSession) setCandidates(candidates []model.LotCandidate) {
	s.candidates = candidates
	s.byLot = make(map[string]model.LotCandidate, len(candidates))
	for _, c := range candidates {
		s.byLot[c.LotID] = c
	}
}

func (s *LineSession) Line() model.OrderLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line
}

// SetQuantity validates raw input for one lot and applies the accepted
// quantity. Rejected input (non-numeric, locked lot, unknown lot) leaves
// state untouched. Any quantity edit resets the lot's confirm marker.
func (s *LineSession) SetQuantity(lotID, raw string) (engine.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving {
		return engine.ValidationResult{}, ErrSaveInFlight
	}

	lot, ok := s.byLot[lotID]
	if !ok {
		return engine.ValidationResult{}, ErrUnknownLot
	}

	res, err := engine.ValidateInput(raw, lot, s.totalExceptLocked(lotID), s.line.RequiredQty)
	if err != nil {
		return engine.ValidationResult{}, err
	}

	s.apply(lotID, res.AcceptedQty, Unset)
	return res, nil
}

// AutoFill sets the lot's quantity to whatever closes the remaining
// shortfall and marks the lot provisionally confirmed. satisfied reports
// the no-op "requirement already satisfied" case.
func (s *LineSession) AutoFill(lotID string) (fillQty float64, satisfied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving {
		return 0, false, ErrSaveInFlight
	}

	lot, ok := s.byLot[lotID]
	if !ok {
		return 0, false, ErrUnknownLot
	}

	fillQty, satisfied, err = engine.AutoFill(lot, s.totalExceptLocked(lotID), s.line.RequiredQty)
	if err != nil {
		return 0, false, err
	}
	if satisfied && fillQty == 0 {
		return 0, true, nil
	}

	// The filled lot shows as provisionally confirmed in the UI, but the
	// status-driving marker is only set by an explicit confirm, so a
	// freshly completed line stays draft until the user confirms or the
	// server reports it allocated.
	s.apply(lotID, fillQty, Unset)
	return fillQty, satisfied, nil
}

// Confirm marks a lot with entered quantity as user-confirmed. It is a
// client-local marker feeding status derivation, not a remote call.
func (s *LineSession) Confirm(lotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving {
		return ErrSaveInFlight
	}
	if _, ok := s.byLot[lotID]; !ok {
		return ErrUnknownLot
	}

	e, ok := s.entries[lotID]
	if !ok || e.quantity <= 0 {
		return ErrNothingToConfirm
	}
	e.confirm = UserConfirmed
	return nil
}

// Clear zeroes one lot and drops its confirm marker.
func (s *LineSession) Clear(lotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving {
		return ErrSaveInFlight
	}
	if _, ok := s.byLot[lotID]; !ok {
		return ErrUnknownLot
	}
	delete(s.entries, lotID)
	return nil
}

// ClearAll drops every entry on the line. Disabled while nothing is
// allocated.
func (s *LineSession) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving {
		return ErrSaveInFlight
	}
	if s.totalLocked() == 0 {
		return ErrNothingAllocated
	}
	s.entries = make(map[string]*entry)
	return nil
}

func (s *LineSession) apply(lotID string, qty float64, confirm ConfirmState) {
	if qty == 0 {
		delete(s.entries, lotID)
		return
	}
	s.entries[lotID] = &entry{quantity: qty, confirm: confirm}
}

func (s *LineSession) totalLocked() float64 {
	var total float64
	for _, e := range s.entries {
		total += e.quantity
	}
	return total
}

func (s *LineSession) totalExceptLocked(lotID string) float64 {
	var total float64
	for id, e := range s.entries {
		if id != lotID {
			total += e.quantity
		}
	}
	return total
}

func (s *LineSession) TotalAllocated() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalLocked()
}

func (s *LineSession) RemainingQty() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.line.RequiredQty - s.totalLocked()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// allConfirmedLocked reports whether every entered lot carries the
// user-confirmed marker. False when nothing is entered.
func (s *LineSession) allConfirmedLocked() bool {
	if len(s.entries) == 0 {
		return false
	}
	for _, e := range s.entries {
		if e.quantity > 0 && e.confirm != UserConfirmed {
			return false
		}
	}
	return true
}

func (s *LineSession) Status() engine.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return engine.DeriveStatus(s.totalLocked(), s.line.RequiredQty, s.allConfirmedLocked(), s.line.Status)
}

func (s *LineSession) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// BeginSave flips the session into the saving state after checking the
// guards: no concurrent save, something allocated, not over-allocated.
func (s *LineSession) BeginSave() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving {
		return ErrSaveInFlight
	}
	total := s.totalLocked()
	if total == 0 {
		return ErrNothingAllocated
	}
	if total > s.line.RequiredQty {
		return ErrOverAllocated
	}
	s.saving = true
	return nil
}

// EndSave leaves the saving state. On success the line is what the server
// now reports: allocated. On failure entries stay exactly as they were so
// the user can retry or adjust.
func (s *LineSession) EndSave(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saving = false
	if success {
		s.line.Status = model.LineStatusAllocated
		for _, e := range s.entries {
			if e.quantity > 0 {
				e.confirm = UserConfirmed
			}
		}
	}
}

// RefreshCandidates replaces the candidate set after a successful commit
// re-fetch. Entries for lots that disappeared from the set are dropped.
func (s *LineSession) RefreshCandidates(candidates []model.LotCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setCandidates(candidates)
	for lotID := range s.entries {
		if _, ok := s.byLot[lotID]; !ok {
			delete(s.entries, lotID)
		}
	}
}

// Snapshot returns the committable entries: quantity > 0 only, ordered by
// lot ID so payloads are deterministic.
func (s *LineSession) Snapshot() []model.AllocationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]model.AllocationEntry, 0, len(s.entries))
	for lotID, e := range s.entries {
		if e.quantity > 0 {
			entries = append(entries, model.AllocationEntry{LotID: lotID, Quantity: e.quantity})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LotID < entries[j].LotID })
	return entries
}

// Lots returns the candidate rows joined with entered quantities, in
// candidate (FEFO display) order.
func (s *LineSession) Lots() []LotView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]LotView, 0, len(s.candidates))
	for _, c := range s.candidates {
		v := LotView{Candidate: c}
		if e, ok := s.entries[c.LotID]; ok {
			v.Quantity = e.quantity
			v.Confirmed = e.confirm == UserConfirmed
		}
		views = append(views, v)
	}
	return views
}

func (s *LineSession) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()
}

// Expired reports whether the session has been idle longer than ttl. A
// session with a save in flight never expires.
func (s *LineSession) Expired(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.saving && time.Since(s.touchedAt) > ttl
}
