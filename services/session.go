package services

import (
	"slices"
	"sync"

	"smartplanr/model"
)

// Session is the per-user, in-memory state that is not persisted:
// the category display order and the plan state.
type Session struct {
	mu    sync.Mutex
	order []string

	Plan *PlanSession
}

func NewSession() *Session {
	return &Session{Plan: NewPlanSession()}
}

// SyncOrder reconciles the category order with tasks and returns it.
func (s *Session) SyncOrder(tasks []model.Task) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = ReconcileOrder(s.order, tasks)
	return slices.Clone(s.order)
}

// Order returns the current category order.
func (s *Session) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// Move applies a user reorder to the current category order.
func (s *Session) Move(from []int, to int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, err := MoveCategories(s.order, from, to)
	if err != nil {
		return nil, err
	}
	s.order = order
	return slices.Clone(order), nil
}

// SessionRegistry hands out one Session per user.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Get returns the user's session, creating it on first use.
func (r *SessionRegistry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = NewSession()
		r.sessions[userID] = s
	}
	return s
}

// Drop forgets a user's session, cancelling any plan in flight.
func (r *SessionRegistry) Drop(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		s.Plan.Reset()
	}
}
