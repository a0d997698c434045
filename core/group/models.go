package group

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studyhub/core"
)

// Member roles
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

const (
	DefaultMaxMembers = 10
	MinMembers        = 2
)

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	MaxMembers  int       `json:"max_members"`
	Tags        []string  `json:"tags"`
	IsPublic    bool      `json:"is_public"`
	MemberCount int       `json:"member_count"` // derived
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (g Group) Full() bool {
	return g.MemberCount >= g.MaxMembers
}

type Member struct {
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`

	// populated by member listings
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

// CanManage reports whether the member may edit the group and remove members.
func (m Member) CanManage() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

type NewGroup struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description string   `json:"description" validate:"omitempty,max=2000"`
	MaxMembers  int      `json:"max_members" validate:"omitempty,min=2,max=500"`
	Tags        []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsPublic    *bool    `json:"is_public"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	ng.Tags = core.CleanStrings(ng.Tags, true /* lower */)
	return validate.Struct(ng)
}

// UpdateGroup holds the group fields to change. nil fields are left untouched.
type UpdateGroup struct {
	Name        *string  `json:"name" validate:"omitempty,notblank,max=255"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	MaxMembers  *int     `json:"max_members" validate:"omitempty,min=2,max=500"`
	Tags        []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsPublic    *bool    `json:"is_public"`
}

func (ug *UpdateGroup) Validate(validate *validator.Validate) error {
	if ug.Name != nil {
		*ug.Name = core.CleanString(*ug.Name)
	}
	if ug.Description != nil {
		*ug.Description = core.CleanString(*ug.Description)
	}
	if ug.Tags != nil {
		ug.Tags = core.CleanStrings(ug.Tags, true /* lower */)
	}
	return validate.Struct(ug)
}

type SetRole struct {
	Role string `json:"role" validate:"required,oneof=admin member"`
}

type QueryFilter struct {
	Search     string `query:"search"`
	PublicOnly bool   `query:"-"`
	UserID     string `query:"-"` // groups the user is a member of
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
