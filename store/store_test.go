package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"todo-app/model"
)

func sampleTasks(label string) []model.Task {
	now := time.Date(2026, 2, 19, 12, 30, 0, 0, time.UTC)
	due := now.Add(24 * time.Hour)
	return []model.Task{
		{
			ID:         "task-" + label + "-full",
			Text:       "Task-" + label,
			Completed:  true,
			Priority:   model.PriorityHigh,
			CategoryID: "2",
			DueDate:    &due,
			Notes:      "notes for " + label,
			CreatedAt:  now,
		},
		{
			ID:         "task-" + label + "-bare",
			Text:       "Bare-" + label,
			Priority:   model.PriorityMedium,
			CategoryID: model.Uncategorized.ID,
			CreatedAt:  now.Add(-time.Hour),
		},
	}
}

func TestEncodeDecodeTasksRoundTrip(t *testing.T) {
	want := sampleTasks("a")

	blob, err := EncodeTasks(want)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := DecodeTasks(blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round-trip mismatch\nwant=%+v\ngot=%+v", want, got)
	}
}

func TestEncodeNilTasksWritesEmptyArray(t *testing.T) {
	blob, err := EncodeTasks(nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if blob != "[]" {
		t.Fatalf("expected [], got %q", blob)
	}
}

func TestDecodeTasksRejectsCorruptBlob(t *testing.T) {
	if _, err := DecodeTasks("{invalid"); err == nil {
		t.Fatalf("expected error for corrupt blob")
	}
	if _, err := DecodeTasks(`{"id":"x"}`); err == nil {
		t.Fatalf("expected error for non-array blob")
	}
}

func TestDecodeTasksNormalizesLegacyBlob(t *testing.T) {
	legacy := `[
  {"id":"1712000000000","text":"  legacy task ","completed":false,"priority":"urgent","categoryId":"","dueDate":null,"notes":"","createdAt":"2024-04-01T10:00:00.000Z"},
  {"id":"1712000000000","text":"duplicate","createdAt":"2024-04-01T10:00:00.000Z"},
  {"id":"","text":"no id","createdAt":"2024-04-01T10:00:00.000Z"},
  {"id":"1712000000001","text":"   ","createdAt":"2024-04-01T10:00:00.000Z"},
  {"id":"1712000000002","text":"minimal","createdAt":"2024-04-01T10:00:00.000Z"}
]`
	got, err := DecodeTasks(legacy)
	if err != nil {
		t.Fatalf("decode legacy failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tasks after normalization, got %d: %+v", len(got), got)
	}
	if got[0].Text != "legacy task" {
		t.Fatalf("expected trimmed text, got %q", got[0].Text)
	}
	if got[0].Priority != model.PriorityMedium {
		t.Fatalf("expected unknown priority to become medium, got %q", got[0].Priority)
	}
	if got[0].CategoryID != model.Uncategorized.ID {
		t.Fatalf("expected blank category to become sentinel, got %q", got[0].CategoryID)
	}
	if got[1].ID != "1712000000002" || got[1].DueDate != nil || got[1].Notes != "" {
		t.Fatalf("unexpected minimal task: %+v", got[1])
	}
}

func TestDecodeNullTasksIsEmpty(t *testing.T) {
	got, err := DecodeTasks("null")
	if err != nil {
		t.Fatalf("decode null failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestDecodeCategoriesAlwaysHasSentinel(t *testing.T) {
	got, err := DecodeCategories(`[{"id":"9","name":"Garden","color":"#00FF00"},{"id":"9","name":"dup","color":""}]`)
	if err != nil {
		t.Fatalf("decode categories failed: %v", err)
	}
	want := []model.Category{{ID: "9", Name: "Garden", Color: "#00FF00"}, model.Uncategorized}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("unexpected categories\nwant=%+v\ngot=%+v", want, got)
	}

	blob, err := EncodeCategories(model.DefaultCategories())
	if err != nil {
		t.Fatalf("encode categories failed: %v", err)
	}
	back, err := DecodeCategories(blob)
	if err != nil {
		t.Fatalf("decode encoded categories failed: %v", err)
	}
	if !reflect.DeepEqual(model.DefaultCategories(), back) {
		t.Fatalf("category round-trip mismatch: %+v", back)
	}
}

func TestMemoryGateway(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, err := m.Get(ctx, KeyTasks); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := m.Set(ctx, KeyTasks, "[]"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, ok, err := m.Get(ctx, KeyTasks)
	if err != nil || !ok || v != "[]" {
		t.Fatalf("unexpected get: %q %v %v", v, ok, err)
	}
	if err := m.Remove(ctx, KeyTasks); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := m.Remove(ctx, KeyTasks); err != nil {
		t.Fatalf("second remove failed: %v", err)
	}
	if len(m.Keys()) != 0 {
		t.Fatalf("expected no keys, got %v", m.Keys())
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.Set(cancelled, KeyTasks, "x"); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
