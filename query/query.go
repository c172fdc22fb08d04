// Package query derives filtered views over a task collection.
package query

import (
	"strings"

	"todo-app/model"
)

// Criteria selects which tasks a view shows. The zero value matches every
// task. HideCompleted is the negation of "show completed" so that the zero
// value keeps completed tasks visible.
type Criteria struct {
	CategoryID    string
	Priority      model.Priority
	SearchQuery   string
	HideCompleted bool
}

// Active reports whether any criterion narrows the view.
func (c Criteria) Active() bool {
	return c.CategoryID != "" || c.Priority != "" || normalizeQuery(c.SearchQuery) != "" || c.HideCompleted
}

// Filter returns the tasks matching every active criterion, in input order.
// The input slice is never modified.
func Filter(tasks []model.Task, c Criteria) []model.Task {
	q := normalizeQuery(c.SearchQuery)
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if c.HideCompleted && t.Completed {
			continue
		}
		if c.CategoryID != "" && t.CategoryID != c.CategoryID {
			continue
		}
		if c.Priority != "" && t.Priority != c.Priority {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Text), q) {
			continue
		}
		out = append(out, copyTask(t))
	}
	return out
}

// Matches reports whether a single task passes c.
func Matches(t model.Task, c Criteria) bool {
	return len(Filter([]model.Task{t}, c)) == 1
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// copyTask detaches the due date pointer so callers cannot reach back into
// the source collection.
func copyTask(t model.Task) model.Task {
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return t
}
