package services

import (
	"fmt"
	"sort"
	"strings"

	"smartplanr/model"
)

// DefaultCategories are offered to clients when creating a task.
var DefaultCategories = []string{"School", "Work", "Personal", "Other"}

// GroupByCategory buckets tasks by category. Within a bucket tasks keep
// their input order, so flattening the buckets yields the input set.
func GroupByCategory(tasks []model.Task) map[string][]model.Task {
	groups := make(map[string][]model.Task)
	for _, t := range tasks {
		c := model.NormalizeCategory(t.Category)
		groups[c] = append(groups[c], t)
	}
	return groups
}

// SortedCategories returns the distinct categories present in tasks, sorted.
func SortedCategories(tasks []model.Task) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tasks {
		c := model.NormalizeCategory(t.Category)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ReconcileOrder merges the categories currently present in tasks into a
// previously established order. Categories that are still present keep their
// relative position, vanished ones are dropped and new ones are appended in
// sorted order. The result never contains duplicates.
func ReconcileOrder(prev []string, tasks []model.Task) []string {
	fresh := SortedCategories(tasks)
	present := make(map[string]bool, len(fresh))
	for _, c := range fresh {
		present[c] = true
	}

	order := make([]string, 0, len(fresh))
	kept := make(map[string]bool, len(prev))
	for _, c := range prev {
		if present[c] && !kept[c] {
			order = append(order, c)
			kept[c] = true
		}
	}
	for _, c := range fresh {
		if !kept[c] {
			order = append(order, c)
		}
	}
	return order
}

// MoveCategories moves the entries at the from offsets so they sit just
// before offset to, where every offset refers to the order as it was before
// the move. Moved entries keep their relative order.
func MoveCategories(order []string, from []int, to int) ([]string, error) {
	if to < 0 || to > len(order) {
		return nil, fmt.Errorf("%w: destination %d out of range [0,%d]", ErrValidation, to, len(order))
	}
	picked := make(map[int]bool, len(from))
	for _, i := range from {
		if i < 0 || i >= len(order) {
			return nil, fmt.Errorf("%w: offset %d out of range [0,%d)", ErrValidation, i, len(order))
		}
		picked[i] = true
	}

	moved := make([]string, 0, len(picked))
	rest := make([]string, 0, len(order)-len(picked))
	insertAt := to
	for i, c := range order {
		if picked[i] {
			moved = append(moved, c)
			if i < to {
				insertAt--
			}
			continue
		}
		rest = append(rest, c)
	}

	out := make([]string, 0, len(order))
	out = append(out, rest[:insertAt]...)
	out = append(out, moved...)
	out = append(out, rest[insertAt:]...)
	return out, nil
}

// CategoryTint is the display tint for a category.
func CategoryTint(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "school":
		return "blue"
	case "work":
		return "orange"
	case "personal":
		return "green"
	case "shopping":
		return "pink"
	default:
		return "gray"
	}
}
