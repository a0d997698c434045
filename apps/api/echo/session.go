package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/session"
	"github.com/trezcool/studyhub/core/user"
)

type sessionApi struct {
	svc      *session.Service
	groups   *group.Service
	users    *user.Service
	validate *validator.Validate
}

func registerSessionAPI(r routes, deps ServerDeps) {
	api := sessionApi{
		svc:      deps.SessionSvc,
		groups:   deps.GroupSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}
	member := groupMemberMiddleware(api.users, api.groups)

	gg := r.groups
	gg.GET("/:id/session-requests", api.listRequests, member)
	gg.POST("/:id/session-requests", api.createRequest, member)
	gg.GET("/:id/sessions", api.listSessions, member)
	gg.POST("/:id/sessions", api.createSession, member, groupManagerMiddleware)

	rg := r.api.Group("/session-requests", r.jwt)
	rg.POST("/:id/accept", api.acceptRequest)
	rg.POST("/:id/reject", api.rejectRequest)

	sg := r.api.Group("/sessions", r.jwt)
	sg.GET("/upcoming", api.upcoming)
	sg.GET("/:id", api.retrieveSession)
	sg.PUT("/:id", api.updateSession)
	sg.DELETE("/:id", api.destroySession)
}

func (api *sessionApi) listRequests(ctx echo.Context) error {
	reqs, err := api.svc.ListRequests(ctx.Request().Context(), contextGroup(ctx).ID, ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "listing session requests")
	}
	if reqs == nil {
		reqs = []session.Request{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *sessionApi) createRequest(ctx echo.Context) error {
	var data session.NewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.CreateRequest(ctx.Request().Context(), contextGroup(ctx).ID, contextMember(ctx).UserID, data)
	if err != nil {
		return errors.Wrap(err, "creating session request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

// reviewableRequest loads the request named by `:id` and checks the caller manages its group.
func (api *sessionApi) reviewableRequest(ctx echo.Context) (session.Request, group.Member, error) {
	req, err := api.svc.GetRequest(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return session.Request{}, group.Member{}, errors.Wrap(err, "finding session request")
	}
	mbr, err := requireManager(ctx, api.users, api.groups, req.GroupID)
	if err != nil {
		return session.Request{}, group.Member{}, err
	}
	return req, mbr, nil
}

func (api *sessionApi) acceptRequest(ctx echo.Context) error {
	req, mbr, err := api.reviewableRequest(ctx)
	if err != nil {
		return err
	}

	var data session.AcceptRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AcceptRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.AcceptRequest(ctx.Request().Context(), req.ID, mbr.UserID, data)
	if err != nil {
		return errors.Wrap(err, "accepting session request")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) rejectRequest(ctx echo.Context) error {
	req, _, err := api.reviewableRequest(ctx)
	if err != nil {
		return err
	}
	req, err = api.svc.RejectRequest(ctx.Request().Context(), req.ID)
	if err != nil {
		return errors.Wrap(err, "rejecting session request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *sessionApi) listSessions(ctx echo.Context) error {
	sessions, err := api.svc.ListSessions(ctx.Request().Context(), contextGroup(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) createSession(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.CreateSession(ctx.Request().Context(), contextGroup(ctx).ID, contextMember(ctx).UserID, data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

// upcoming lists the upcoming sessions of every group the caller belongs to.
func (api *sessionApi) upcoming(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	groupIDs, err := api.groups.UserGroupIDs(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing user groups")
	}
	sessions, err := api.svc.ListUpcoming(ctx.Request().Context(), groupIDs...)
	if err != nil {
		return errors.Wrap(err, "listing upcoming sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) retrieveSession(ctx echo.Context) error {
	sess, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding session")
	}
	if _, err = requireMember(ctx, api.users, api.groups, sess.GroupID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

// editableSession loads the session named by `:id`. Its creator and the group managers may edit it.
func (api *sessionApi) editableSession(ctx echo.Context) (session.Session, error) {
	sess, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return session.Session{}, errors.Wrap(err, "finding session")
	}
	mbr, err := requireMember(ctx, api.users, api.groups, sess.GroupID)
	if err != nil {
		return session.Session{}, err
	}
	if sess.CreatedBy != mbr.UserID && !mbr.CanManage() {
		return session.Session{}, errHttpForbidden
	}
	return sess, nil
}

func (api *sessionApi) updateSession(ctx echo.Context) error {
	sess, err := api.editableSession(ctx)
	if err != nil {
		return err
	}

	var data session.UpdateSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err = api.svc.UpdateSession(ctx.Request().Context(), sess.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroySession(ctx echo.Context) error {
	sess, err := api.editableSession(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSession(ctx.Request().Context(), sess.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}
