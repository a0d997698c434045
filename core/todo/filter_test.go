package todo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Apply(t *testing.T) {
	day := func(d int) *time.Time {
		t := time.Date(2030, 3, d, 12, 0, 0, 0, time.UTC)
		return &t
	}
	todos := []Todo{
		{ID: "1", Status: StatusPending, Type: TypePersonal, Priority: PriorityHigh, DueDate: day(1)},
		{ID: "2", Status: StatusCompleted, Type: TypeGroup, GroupID: "g1", DueDate: day(5)},
		{ID: "3", Status: StatusInProgress, Type: TypeGroup, GroupID: "g2", Priority: PriorityLow},
		{ID: "4", Status: StatusPending, Type: TypePersonal, DueDate: day(9)},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "empty", filter: Filter{}, want: []string{"1", "2", "3", "4"}},
		{name: "status", filter: Filter{Status: StatusPending}, want: []string{"1", "4"}},
		{name: "type", filter: Filter{Type: TypeGroup}, want: []string{"2", "3"}},
		{name: "priority", filter: Filter{Priority: PriorityLow}, want: []string{"3"}},
		{name: "group", filter: Filter{GroupID: "g1"}, want: []string{"2"}},
		{name: "due from", filter: Filter{DueFrom: day(5)}, want: []string{"2", "4"}},
		{name: "due to", filter: Filter{DueTo: day(5)}, want: []string{"1", "2"}},
		{name: "due range", filter: Filter{DueFrom: day(2), DueTo: day(8)}, want: []string{"2"}},
		{name: "combined", filter: Filter{Status: StatusPending, DueFrom: day(2)}, want: []string{"4"}},
		{name: "no match", filter: Filter{Status: StatusCompleted, Type: TypePersonal}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(todos)
			ids := make([]string, 0, len(got))
			for _, td := range got {
				ids = append(ids, td.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
	assert.True(t, Filter{}.IsEmpty())
	assert.False(t, Filter{Type: TypeGroup}.IsEmpty())
}

func TestTodo_StatusFor(t *testing.T) {
	personal := Todo{Status: StatusInProgress, Completions: map[string]Completion{"u1": {Completed: true}}}
	assert.Equal(t, StatusInProgress, personal.StatusFor("u1"), "personal todos use their stored status")

	grp := Todo{GroupID: "g", Status: StatusPending, Completions: map[string]Completion{
		"u1": {UserID: "u1", Completed: true},
		"u2": {UserID: "u2", Completed: false},
	}}
	assert.Equal(t, StatusCompleted, grp.StatusFor("u1"))
	assert.Equal(t, StatusPending, grp.StatusFor("u2"))
	assert.Equal(t, StatusPending, grp.StatusFor("u3"))

	grp.Status = StatusCompleted
	assert.Equal(t, StatusPending, grp.StatusFor("u3"), "a stored completed status does not complete it for everyone")

	view := grp.ForUser("u1")
	assert.Equal(t, StatusCompleted, view.Status)
	assert.Nil(t, view.Completions)
	assert.NotNil(t, grp.Completions, "ForUser works on a copy")
}
