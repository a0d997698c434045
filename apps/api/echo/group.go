package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/match"
	"github.com/trezcool/studyhub/core/user"
)

type groupApi struct {
	svc      *group.Service
	users    *user.Service
	validate *validator.Validate
}

func registerGroupAPI(r routes, deps ServerDeps) {
	api := groupApi{
		svc:      deps.GroupSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}
	member := groupMemberMiddleware(api.users, api.svc)

	gg := r.groups
	gg.GET("", api.listMine)
	gg.POST("", api.create)
	gg.GET("/recommended", api.recommended)
	gg.GET("/public", api.listPublic)

	gg.GET("/:id", api.retrieve)
	gg.PUT("/:id", api.update, member, groupManagerMiddleware)
	gg.DELETE("/:id", api.destroy, member, groupOwnerMiddleware)
	gg.POST("/:id/join", api.join)
	gg.POST("/:id/leave", api.leave)

	gg.GET("/:id/members", api.members, member)
	gg.DELETE("/:id/members/:uid", api.removeMember, member, groupManagerMiddleware)
	gg.PUT("/:id/members/:uid/role", api.setRole, member, groupOwnerMiddleware)
}

func (api *groupApi) listMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	groups, err := api.svc.ListForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) listPublic(ctx echo.Context) error {
	var filter group.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []group.Group{})
	}
	filter.Clean()
	filter.PublicOnly = true

	groups, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) recommended(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	profile := match.Profile{
		Subjects:       usr.Subjects,
		EducationLevel: usr.EducationLevel,
		StudyStyle:     usr.StudyStyle,
		Timezone:       usr.Timezone,
	}
	recs, err := api.svc.Recommend(ctx.Request().Context(), usr.ID, profile, ctx.QueryParam("strategy"))
	if err != nil {
		return errors.Wrap(err, "recommending groups")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *groupApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data group.NewGroup
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

// retrieve shows public groups to everyone and private groups to their members.
func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding group")
	}
	if !grp.IsPublic {
		if _, err = requireMember(ctx, api.users, api.svc, grp.ID); err != nil {
			if errors.Cause(err) == errNotGroupMember {
				return errHttpNotFound
			}
			return err
		}
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	var data group.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Update(ctx.Request().Context(), contextGroup(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextGroup(ctx).ID); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) join(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mbr, err := api.svc.Join(ctx.Request().Context(), ctx.Param("id"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "joining group")
	}
	return ctx.JSON(http.StatusCreated, mbr)
}

func (api *groupApi) leave(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Leave(ctx.Request().Context(), ctx.Param("id"), usr.ID); err != nil {
		return errors.Wrap(err, "leaving group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) members(ctx echo.Context) error {
	members, err := api.svc.ListMembers(ctx.Request().Context(), contextGroup(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	if members == nil {
		members = []group.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

// removeMember lets the owner remove anyone but themselves, and admins remove plain members.
func (api *groupApi) removeMember(ctx echo.Context) error {
	grp, caller := contextGroup(ctx), contextMember(ctx)

	target, err := api.svc.Member(ctx.Request().Context(), grp.ID, ctx.Param("uid"))
	if err != nil {
		return errors.Wrap(err, "finding member")
	}
	if target.Role != group.RoleMember && caller.Role != group.RoleOwner {
		return errHttpForbidden
	}

	if err = api.svc.RemoveMember(ctx.Request().Context(), grp.ID, target.UserID); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) setRole(ctx echo.Context) error {
	var data group.SetRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetRole")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	mbr, err := api.svc.SetRole(ctx.Request().Context(), contextGroup(ctx).ID, ctx.Param("uid"), data.Role)
	if err != nil {
		return errors.Wrap(err, "setting member role")
	}
	return ctx.JSON(http.StatusOK, mbr)
}
