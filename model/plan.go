package model

import "time"

// PlanState is the result of the most recent plan request for a user.
// Exactly one of PlanIdle, PlanLoading, PlanSuccess or PlanFailure is active.
type PlanState interface {
	// Status names the active variant: "idle", "loading", "success" or "failure".
	Status() string
	planState()
}

type PlanIdle struct{}

type PlanLoading struct {
	StartedAt  time.Time
	Categories []string
}

type PlanSuccess struct {
	Markdown   string
	Model      string
	FinishedAt time.Time
}

type PlanFailure struct {
	Message    string
	FinishedAt time.Time
}

func (PlanIdle) Status() string    { return "idle" }
func (PlanLoading) Status() string { return "loading" }
func (PlanSuccess) Status() string { return "success" }
func (PlanFailure) Status() string { return "failure" }

func (PlanIdle) planState()    {}
func (PlanLoading) planState() {}
func (PlanSuccess) planState() {}
func (PlanFailure) planState() {}
