package model

import (
	"strings"
	"time"
)

// Priority is a task priority label.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every valid priority from most to least urgent.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// ParsePriority maps user input to a priority. Blank input yields medium.
func ParsePriority(s string) (Priority, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityMedium, true
	}
	p := Priority(s)
	if !p.Valid() {
		return "", false
	}
	return p, true
}

// Category is a named, colored label tasks may reference.
type Category struct {
	ID    string `json:"id" yaml:"id" toml:"id"`
	Name  string `json:"name" yaml:"name" toml:"name"`
	Color string `json:"color" yaml:"color" toml:"color"`
}

// Uncategorized is the fallback category. It is always part of the category
// set and resolves every dangling categoryId.
var Uncategorized = Category{
	ID:    "uncategorized",
	Name:  "Uncategorized",
	Color: "#8A8A8E",
}

// DefaultCategories returns the categories a fresh install starts with.
func DefaultCategories() []Category {
	return []Category{
		{ID: "1", Name: "Personal", Color: "#4A6FFF"},
		{ID: "2", Name: "Work", Color: "#FF4D4F"},
		{ID: "3", Name: "Shopping", Color: "#FAAD14"},
		{ID: "4", Name: "Health", Color: "#52C41A"},
		Uncategorized,
	}
}

// Task is an individual todo item.
type Task struct {
	ID         string     `json:"id" yaml:"id" toml:"id"`
	Text       string     `json:"text" yaml:"text" toml:"text"`
	Completed  bool       `json:"completed" yaml:"completed" toml:"completed"`
	Priority   Priority   `json:"priority" yaml:"priority" toml:"priority"`
	CategoryID string     `json:"categoryId" yaml:"categoryId" toml:"categoryId"`
	DueDate    *time.Time `json:"dueDate" yaml:"dueDate,omitempty" toml:"dueDate,omitempty"`
	Notes      string     `json:"notes" yaml:"notes" toml:"notes"`
	CreatedAt  time.Time  `json:"createdAt" yaml:"createdAt" toml:"createdAt"`
}

// Draft carries the caller-supplied fields of a task to be created.
type Draft struct {
	Text       string     `validate:"required"`
	Priority   Priority   `validate:"omitempty,oneof=high medium low"`
	CategoryID string     `validate:"omitempty,max=128"`
	DueDate    *time.Time `validate:"-"`
	Notes      string     `validate:"max=10000"`
}

// Patch holds the fields to merge onto an existing task. Nil fields are left
// untouched. ClearDueDate removes the due date and wins over DueDate.
type Patch struct {
	Text         *string
	Completed    *bool
	Priority     *Priority
	CategoryID   *string
	DueDate      *time.Time
	ClearDueDate bool
	Notes        *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Text == nil && p.Completed == nil && p.Priority == nil &&
		p.CategoryID == nil && p.DueDate == nil && !p.ClearDueDate && p.Notes == nil
}

// CategoryDraft carries the fields of a category to be created.
type CategoryDraft struct {
	Name  string `validate:"required,max=64"`
	Color string `validate:"omitempty,hexcolor"`
}

// State is a point-in-time copy of the task store contents.
type State struct {
	Tasks      []Task     `json:"tasks" yaml:"tasks" toml:"tasks"`
	Categories []Category `json:"categories" yaml:"categories" toml:"categories"`
}

// NewState returns an initialized empty state with the default categories.
func NewState() State {
	return State{
		Tasks:      []Task{},
		Categories: DefaultCategories(),
	}
}

// StringPtr, BoolPtr and PriorityPtr return pointers to their argument, for
// building patches inline.
func StringPtr(s string) *string { return &s }

func BoolPtr(b bool) *bool { return &b }

func PriorityPtr(p Priority) *Priority { return &p }
