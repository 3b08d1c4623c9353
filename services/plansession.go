package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"smartplanr/model"
)

// PlanSession holds the state of one user's plan requests. The last request
// wins: starting a new plan cancels the attempt in flight, and a superseded
// attempt never writes its result.
type PlanSession struct {
	mu      sync.Mutex
	state   model.PlanState
	attempt uint64
	cancel  context.CancelFunc

	now func() time.Time
}

func NewPlanSession() *PlanSession {
	return &PlanSession{state: model.PlanIdle{}, now: time.Now}
}

// State returns the current plan state.
func (s *PlanSession) State() model.PlanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start snapshots tasks and begins a plan request for the chosen categories.
// The state moves to loading and the generation runs in the background under
// ctx, which should outlive the caller's request. If no task qualifies the
// state becomes a failure right away and ErrNoEligibleTasks is returned.
// The returned channel is closed once the attempt has finished.
func (s *PlanSession) Start(ctx context.Context, p *Planner, chosen []string, tasks []model.Task) (<-chan struct{}, error) {
	done := make(chan struct{})
	prompt, err := p.Prompt(chosen, slices.Clone(tasks))

	s.mu.Lock()
	s.stopLocked()
	if err != nil {
		s.state = model.PlanFailure{Message: err.Error(), FinishedAt: s.now()}
		s.mu.Unlock()
		close(done)
		return done, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	attempt := s.attempt
	s.state = model.PlanLoading{StartedAt: s.now(), Categories: slices.Clone(chosen)}
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		text, usedModel, err := p.Generate(runCtx, prompt)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.attempt != attempt {
			return
		}
		if err != nil {
			s.state = model.PlanFailure{Message: err.Error(), FinishedAt: s.now()}
		} else {
			s.state = model.PlanSuccess{Markdown: text, Model: usedModel, FinishedAt: s.now()}
		}
		s.cancel = nil
	}()
	return done, nil
}

// Reset cancels any attempt in flight and returns to idle.
func (s *PlanSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.state = model.PlanIdle{}
}

// stopLocked supersedes the current attempt.
func (s *PlanSession) stopLocked() {
	s.attempt++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
