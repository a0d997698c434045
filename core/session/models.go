package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studyhub/core"
)

// Request statuses. accepted and rejected are terminal.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// Session statuses
const (
	StatusUpcoming  = "upcoming"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Request is a member's proposal for a study session, reviewed by the group owner.
type Request struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	RequestedBy string    `json:"requested_by"`
	Topic       string    `json:"topic"`
	Date        string    `json:"date"`       // YYYY-MM-DD
	StartTime   string    `json:"start_time"` // HH:MM[:SS] or RFC3339
	EndTime     string    `json:"end_time"`
	Status      string    `json:"status"`
	SessionID   string    `json:"session_id"` // set once accepted
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Session struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	CreatedBy   string    `json:"created_by"`
	Topic       string    `json:"topic"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	MeetingLink string    `json:"meeting_link"`
	RequestID   string    `json:"request_id"` // set when created from a Request
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewRequest struct {
	Topic     string `json:"topic" validate:"required,max=255"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,sessiontime"`
	EndTime   string `json:"end_time" validate:"omitempty,sessiontime"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.Topic = core.CleanString(nr.Topic)
	nr.Date = core.CleanString(nr.Date)
	nr.StartTime = core.CleanString(nr.StartTime)
	nr.EndTime = core.CleanString(nr.EndTime)
	return validate.Struct(nr)
}

// AcceptRequest holds the meeting link and the fields the owner may override when accepting a Request.
type AcceptRequest struct {
	MeetingLink *string `json:"meeting_link" validate:"omitempty,url"`
	Topic       *string `json:"topic" validate:"omitempty,notblank,max=255"`
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime   *string `json:"start_time" validate:"omitempty,sessiontime"`
	EndTime     *string `json:"end_time" validate:"omitempty,sessiontime"`
}

func (ar *AcceptRequest) Validate(validate *validator.Validate) error {
	cleanPtrs(ar.MeetingLink, ar.Topic, ar.Date, ar.StartTime, ar.EndTime)
	return validate.Struct(ar)
}

type NewSession struct {
	Topic       string `json:"topic" validate:"required,max=255"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,sessiontime"`
	EndTime     string `json:"end_time" validate:"omitempty,sessiontime"`
	MeetingLink string `json:"meeting_link" validate:"omitempty,url"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Topic = core.CleanString(ns.Topic)
	ns.Date = core.CleanString(ns.Date)
	ns.StartTime = core.CleanString(ns.StartTime)
	ns.EndTime = core.CleanString(ns.EndTime)
	ns.MeetingLink = core.CleanString(ns.MeetingLink)
	return validate.Struct(ns)
}

// UpdateSession holds the session fields to change. nil fields are left untouched.
type UpdateSession struct {
	Topic       *string `json:"topic" validate:"omitempty,notblank,max=255"`
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime   *string `json:"start_time" validate:"omitempty,sessiontime"`
	EndTime     *string `json:"end_time" validate:"omitempty,sessiontime"`
	MeetingLink *string `json:"meeting_link" validate:"omitempty,url"`
	Status      *string `json:"status" validate:"omitempty,oneof=upcoming completed cancelled"`
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	cleanPtrs(us.Topic, us.Date, us.StartTime, us.EndTime, us.MeetingLink, us.Status)
	return validate.Struct(us)
}

func cleanPtrs(ptrs ...*string) {
	for _, p := range ptrs {
		if p != nil {
			*p = core.CleanString(*p)
		}
	}
}

func pick(override *string, fallback string) string {
	if override != nil && *override != "" {
		return *override
	}
	return fallback
}
