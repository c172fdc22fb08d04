package query

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-app/model"
)

func sampleTasks() []model.Task {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)
	return []model.Task{
		{ID: "t4", Text: "Milkshake recipe", Completed: true, Priority: model.PriorityLow, CategoryID: "3", CreatedAt: now.Add(3 * time.Minute)},
		{ID: "t3", Text: "Read book", Completed: true, Priority: model.PriorityMedium, CategoryID: "1", CreatedAt: now.Add(2 * time.Minute)},
		{ID: "t2", Text: "Walk dog", Priority: model.PriorityHigh, CategoryID: "1", DueDate: &due, CreatedAt: now.Add(time.Minute)},
		{ID: "t1", Text: "Buy milk", Priority: model.PriorityHigh, CategoryID: "3", CreatedAt: now},
	}
}

func ids(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestFilterNoCriteriaKeepsEverythingInOrder(t *testing.T) {
	tasks := sampleTasks()
	got := Filter(tasks, Criteria{})
	assert.Equal(t, []string{"t4", "t3", "t2", "t1"}, ids(got))
}

func TestFilterSearchIsCaseInsensitiveAndTrimmed(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Text: "Buy milk"},
		{ID: "b", Text: "Walk dog"},
	}
	got := Filter(tasks, Criteria{SearchQuery: "milk"})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got = Filter(tasks, Criteria{SearchQuery: "  MILK "})
	assert.Equal(t, []string{"a"}, ids(got))

	got = Filter(tasks, Criteria{SearchQuery: "   "})
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestFilterHideCompleted(t *testing.T) {
	tasks := sampleTasks()
	got := Filter(tasks, Criteria{HideCompleted: true})
	for _, task := range got {
		assert.False(t, task.Completed, "task %s is completed", task.ID)
	}
	assert.Equal(t, []string{"t2", "t1"}, ids(got))
}

func TestFilterCombinesCriteriaWithAnd(t *testing.T) {
	tasks := sampleTasks()

	assert.Equal(t, []string{"t4", "t1"}, ids(Filter(tasks, Criteria{CategoryID: "3"})))
	assert.Equal(t, []string{"t2", "t1"}, ids(Filter(tasks, Criteria{Priority: model.PriorityHigh})))
	assert.Equal(t, []string{"t1"}, ids(Filter(tasks, Criteria{CategoryID: "3", Priority: model.PriorityHigh})))
	assert.Equal(t, []string{"t4", "t1"}, ids(Filter(tasks, Criteria{SearchQuery: "milk"})))
	assert.Equal(t, []string{"t1"}, ids(Filter(tasks, Criteria{SearchQuery: "milk", HideCompleted: true})))
	assert.Empty(t, Filter(tasks, Criteria{CategoryID: "missing"}))
}

func TestFilterIsPure(t *testing.T) {
	tasks := sampleTasks()
	before := sampleTasks()
	c := Criteria{Priority: model.PriorityHigh, SearchQuery: "walk"}

	first := Filter(tasks, c)
	second := Filter(tasks, c)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("filter not deterministic\nfirst=%+v\nsecond=%+v", first, second)
	}
	if !reflect.DeepEqual(before, tasks) {
		t.Fatalf("filter mutated input\nbefore=%+v\nafter=%+v", before, tasks)
	}

	require.Len(t, first, 1)
	require.NotNil(t, first[0].DueDate)
	*first[0].DueDate = time.Time{}
	if !reflect.DeepEqual(before, tasks) {
		t.Fatalf("result shares due date with input")
	}
}

func TestFilterEmptyInput(t *testing.T) {
	got := Filter(nil, Criteria{SearchQuery: "x"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCriteriaActive(t *testing.T) {
	assert.False(t, Criteria{}.Active())
	assert.False(t, Criteria{SearchQuery: "  "}.Active())
	assert.True(t, Criteria{HideCompleted: true}.Active())
	assert.True(t, Criteria{Priority: model.PriorityLow}.Active())
	assert.True(t, Criteria{CategoryID: "1"}.Active())
}

func TestMatches(t *testing.T) {
	task := model.Task{ID: "a", Text: "Buy milk", Completed: true}
	assert.True(t, Matches(task, Criteria{SearchQuery: "buy"}))
	assert.False(t, Matches(task, Criteria{HideCompleted: true}))
}
