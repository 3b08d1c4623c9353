package model

import (
	"math"
	"strings"
	"time"
)

// DefaultCategory is used for tasks created without a category.
const DefaultCategory = "Uncategorized"

// Task is one to-do item, stored under users/{userId}/todos/{id}.
// Timestamps are seconds since the Unix epoch.
type Task struct {
	ID          string  `firestore:"id" json:"id"`
	Title       string  `firestore:"title" json:"title"`
	DueDate     float64 `firestore:"dueDate" json:"dueDate"`
	CreatedDate float64 `firestore:"createdDate" json:"createdDate"`
	IsDone      bool    `firestore:"isDone" json:"isDone"`
	Category    string  `firestore:"category" json:"category"`
}

// Due returns the due timestamp as a time.Time.
func (t Task) Due() time.Time {
	return FromEpoch(t.DueDate)
}

// NormalizeCategory returns the category a task is filed under.
func NormalizeCategory(category string) string {
	if strings.TrimSpace(category) == "" {
		return DefaultCategory
	}
	return category
}

// Epoch converts t to fractional seconds since the Unix epoch.
func Epoch(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// FromEpoch converts fractional seconds since the Unix epoch to a time.Time.
// Whole seconds and the fraction are converted separately so dates outside
// the int64 nanosecond range survive.
func FromEpoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
