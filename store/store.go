// Package store holds the persistence gateways the task store writes through
// and the codec for the blobs it writes.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"todo-app/model"
)

// Fixed gateway keys.
const (
	KeyTasks      = "@tasks"
	KeyCategories = "@categories"
	KeyThemeMode  = "@theme_mode"
)

// Gateway is an opaque string-keyed store of text blobs.
type Gateway interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent; that is not an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Memory is a Gateway backed by a map. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns the keys currently stored.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out
}

// EncodeTasks serializes the whole task collection as a JSON array.
func EncodeTasks(tasks []model.Task) (string, error) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeTasks parses a task blob and normalizes it: tasks without id or text
// are dropped, duplicate ids keep their first occurrence, unknown priorities
// become medium and blank category references point at the sentinel.
func DecodeTasks(blob string) ([]model.Task, error) {
	var tasks []model.Task
	if err := json.Unmarshal([]byte(blob), &tasks); err != nil {
		return nil, err
	}
	return normalizeTasks(tasks), nil
}

// EncodeCategories serializes the category set as a JSON array.
func EncodeCategories(categories []model.Category) (string, error) {
	if categories == nil {
		categories = []model.Category{}
	}
	data, err := json.Marshal(categories)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeCategories parses a category blob. The result always contains the
// Uncategorized sentinel.
func DecodeCategories(blob string) ([]model.Category, error) {
	var categories []model.Category
	if err := json.Unmarshal([]byte(blob), &categories); err != nil {
		return nil, err
	}
	return normalizeCategories(categories), nil
}

func normalizeTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		t.ID = strings.TrimSpace(t.ID)
		t.Text = strings.TrimSpace(t.Text)
		if t.ID == "" || t.Text == "" {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		if !t.Priority.Valid() {
			t.Priority = model.PriorityMedium
		}
		if strings.TrimSpace(t.CategoryID) == "" {
			t.CategoryID = model.Uncategorized.ID
		}
		out = append(out, t)
	}
	return out
}

func normalizeCategories(categories []model.Category) []model.Category {
	out := make([]model.Category, 0, len(categories)+1)
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		if c.ID == model.Uncategorized.ID {
			c = model.Uncategorized
		}
		out = append(out, c)
	}
	if _, ok := seen[model.Uncategorized.ID]; !ok {
		out = append(out, model.Uncategorized)
	}
	return out
}
