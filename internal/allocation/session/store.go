package session

import (
	"context"
	"sync"
	"time"
)

// Store is the in-memory registry of open reconciliation sessions. One
// session per order line: opening a line again replaces the previous
// session (a fresh line load discards local state).
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*LineSession
	byLine map[string]string // order line ID -> session ID
}

func NewStore() *Store {
	return &Store{
		byID:   make(map[string]*LineSession),
		byLine: make(map[string]string),
	}
}

func (st *Store) Put(s *LineSession) {
	st.mu.Lock()
	defer st.mu.Unlock()

	lineID := s.Line().ID
	if prevID, ok := st.byLine[lineID]; ok {
		delete(st.byID, prevID)
	}
	st.byID[s.ID] = s
	st.byLine[lineID] = s.ID
}

func (st *Store) Get(id string) (*LineSession, bool) {
	st.mu.RLock()
	s, ok := st.byID[id]
	st.mu.RUnlock()

	if ok {
		s.Touch()
	}
	return s, ok
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.byID[id]; ok {
		delete(st.byLine, s.Line().ID)
		delete(st.byID, id)
	}
}

func (st *Store) sweep(ttl time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, s := range st.byID {
		if s.Expired(ttl) {
			delete(st.byLine, s.Line().ID)
			delete(st.byID, id)
		}
	}
}

// StartJanitor periodically drops expired sessions until ctx is done.
func (st *Store) StartJanitor(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.sweep(ttl)
		}
	}
}
