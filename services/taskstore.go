package services

import (
	"context"
	"strings"
	"time"

	"smartplanr/model"
)

// TaskStore is the persistence boundary for tasks. Every operation is
// scoped to one user's namespace.
type TaskStore interface {
	// Subscribe delivers the user's full task set now and again after every
	// change. The channel is closed when ctx ends or the stream fails.
	// A slow reader only sees the most recent set.
	Subscribe(ctx context.Context, userID string) (<-chan []model.Task, error)

	// List returns the user's current task set.
	List(ctx context.Context, userID string) ([]model.Task, error)

	// Create inserts a new task. It fails with ErrValidation when the title
	// is blank or due is earlier than the current moment.
	Create(ctx context.Context, userID, title string, due time.Time, category string) (model.Task, error)

	// SetDone updates the completion flag. It fails with ErrNotFound when
	// no task with that id is visible.
	SetDone(ctx context.Context, userID, taskID string, done bool) error

	// Delete removes a task. It fails with ErrNotFound when no task with
	// that id is visible.
	Delete(ctx context.Context, userID, taskID string) error
}

// newTask validates a create request and builds the record to store.
func newTask(id, title string, due, now time.Time, category string) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, validationError("title is required")
	}
	if due.Before(now) {
		return model.Task{}, validationError("due date must not be in the past")
	}
	return model.Task{
		ID:          id,
		Title:       title,
		DueDate:     model.Epoch(due),
		CreatedDate: model.Epoch(now),
		IsDone:      false,
		Category:    model.NormalizeCategory(strings.TrimSpace(category)),
	}, nil
}

// publishLatest replaces whatever is buffered in ch with tasks.
// ch must have a buffer of one and a single sender.
func publishLatest(ch chan []model.Task, tasks []model.Task) {
	select {
	case <-ch:
	default:
	}
	ch <- tasks
}
