package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/user"
)

const (
	contextGroupKey  = "group"
	contextMemberKey = "member"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && claims.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// groupMemberMiddleware loads the group named by the `:id` param and the caller's membership.
// Non-members are refused.
func groupMemberMiddleware(users *user.Service, groups *group.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			grp, err := groups.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding group")
			}
			mbr, err := requireMember(ctx, users, groups, grp.ID)
			if err != nil {
				return err
			}
			ctx.Set(contextGroupKey, grp)
			ctx.Set(contextMemberKey, mbr)
			return next(ctx)
		}
	}
}

// groupManagerMiddleware only lets the owner and the admins of the group through.
// It must run after groupMemberMiddleware.
func groupManagerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if mbr, ok := ctx.Get(contextMemberKey).(group.Member); ok && mbr.CanManage() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// groupOwnerMiddleware only lets the owner of the group through.
// It must run after groupMemberMiddleware.
func groupOwnerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if mbr, ok := ctx.Get(contextMemberKey).(group.Member); ok && mbr.Role == group.RoleOwner {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// requireMember returns the caller's membership in groupID, or errNotGroupMember.
func requireMember(ctx echo.Context, users *user.Service, groups *group.Service, groupID string) (group.Member, error) {
	usr, err := getContextUser(ctx, users)
	if err != nil {
		return group.Member{}, errors.Wrap(err, "getting context user")
	}
	mbr, err := groups.Member(ctx.Request().Context(), groupID, usr.ID)
	if err != nil {
		if errors.Cause(err) == group.ErrMemberNotFound {
			return group.Member{}, errNotGroupMember
		}
		return group.Member{}, errors.Wrap(err, "finding membership")
	}
	return mbr, nil
}

func contextGroup(ctx echo.Context) group.Group {
	grp, _ := ctx.Get(contextGroupKey).(group.Group)
	return grp
}

func contextMember(ctx echo.Context) group.Member {
	mbr, _ := ctx.Get(contextMemberKey).(group.Member)
	return mbr
}

// requireManager returns the caller's membership in groupID when they are its owner or an admin.
func requireManager(ctx echo.Context, users *user.Service, groups *group.Service, groupID string) (group.Member, error) {
	mbr, err := requireMember(ctx, users, groups, groupID)
	if err != nil {
		return group.Member{}, err
	}
	if !mbr.CanManage() {
		return group.Member{}, errHttpForbidden
	}
	return mbr, nil
}
