package todo

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studyhub/core"
)

// Statuses
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Types
const (
	TypePersonal = "personal"
	TypeGroup    = "group"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Completion records that a user completed a todo. There is at most one per (TodoID, UserID).
type Completion struct {
	TodoID      string    `json:"todo_id"`
	UserID      string    `json:"user_id"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at"`
}

// Todo is either personal (GroupID empty) or a group todo.
// Personal todos carry their live status in Status.
// Group todos are tracked per member through Completions and their stored Status is never changed by completions.
type Todo struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"` // creator
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Status      string     `json:"status"`
	Type        string     `json:"type"`
	Priority    string     `json:"priority"`
	GroupID     string     `json:"group_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Completions holds the completions loaded with the todo, keyed by user id.
	Completions map[string]Completion `json:"-"`
}

func (t Todo) IsGroup() bool {
	return t.GroupID != ""
}

// StatusFor returns the status userID sees.
// A group todo is completed for userID if and only if userID has a completion for it.
func (t Todo) StatusFor(userID string) string {
	if !t.IsGroup() {
		return t.Status
	}
	if c, ok := t.Completions[userID]; ok && c.Completed {
		return StatusCompleted
	}
	if t.Status == StatusCompleted {
		return StatusPending
	}
	return t.Status
}

// ForUser returns a copy of the todo with Status set to what userID sees.
func (t Todo) ForUser(userID string) Todo {
	t.Status = t.StatusFor(userID)
	t.Completions = nil
	return t
}

type NewTodo struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"due_date"`
	Status      string     `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	GroupID     string     `json:"group_id" validate:"omitempty,uuid"`
}

func (nt *NewTodo) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.GroupID = core.CleanString(nt.GroupID)
	return validate.Struct(nt)
}

// UpdateTodo holds the fields to change. nil fields are left untouched;
// an empty Priority or GroupID clears it.
type UpdateTodo struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"due_date"`
	ClearDue    bool       `json:"clear_due_date"`
	Status      *string    `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	GroupID     *string    `json:"group_id" validate:"omitempty,uuid"`
}

func (ut *UpdateTodo) Validate(validate *validator.Validate) error {
	for _, p := range []*string{ut.Title, ut.Description, ut.Priority, ut.GroupID} {
		if p != nil {
			*p = core.CleanString(*p)
		}
	}
	return validate.Struct(ut)
}

// apply writes the non-status fields to t.
func (ut UpdateTodo) apply(t *Todo) {
	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.ClearDue {
		t.DueDate = nil
	} else if ut.DueDate != nil {
		due := ut.DueDate.UTC()
		t.DueDate = &due
	}
	if ut.Priority != nil {
		t.Priority = *ut.Priority
	}
	if ut.GroupID != nil {
		t.GroupID = *ut.GroupID
	}
	t.Type = TypePersonal
	if t.GroupID != "" {
		t.Type = TypeGroup
	}
}
