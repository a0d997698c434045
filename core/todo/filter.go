package todo

import "time"

// Filter selects todos in memory. Zero fields match everything.
type Filter struct {
	Status   string     `query:"status"`
	Type     string     `query:"type"`
	Priority string     `query:"priority"`
	GroupID  string     `query:"group_id"`
	DueFrom  *time.Time `query:"-"`
	DueTo    *time.Time `query:"-"`
}

func (f Filter) IsEmpty() bool {
	return f == Filter{}
}

// Apply returns the todos matching every set field, in their original order.
// Todos without a due date never match a due date range.
func (f Filter) Apply(todos []Todo) []Todo {
	filtered := make([]Todo, 0, len(todos))
	for _, t := range todos {
		if f.match(t) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func (f Filter) match(t Todo) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.GroupID != "" && t.GroupID != f.GroupID {
		return false
	}
	if f.DueFrom != nil || f.DueTo != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
			return false
		}
		if f.DueTo != nil && t.DueDate.After(*f.DueTo) {
			return false
		}
	}
	return true
}
