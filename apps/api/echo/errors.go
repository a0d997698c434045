package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errNotGroupMember       = echo.NewHTTPError(http.StatusForbidden, "you are not a member of this group")
)

var kindCodes = map[core.ErrKind]int{
	core.KindNotFound:  http.StatusNotFound,
	core.KindConflict:  http.StatusConflict,
	core.KindForbidden: http.StatusForbidden,
	core.KindInvalid:   http.StatusBadRequest,
}

// errorResponse maps err to a status code and a body. ok is false for unexpected errors.
func errorResponse(err error, translator ut.Translator) (code int, body interface{}, ok bool) {
	switch e := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if e == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, e.Message, true
		}
		if inner, isHTTP := e.Internal.(*echo.HTTPError); isHTTP {
			e = inner
		}
		return e.Code, e.Message, true

	case validator.ValidationErrors:
		fields := make(map[string]string, len(e))
		for _, fe := range e {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields, true

	case *core.ValidationError:
		if e.Fields == nil {
			return http.StatusBadRequest, e.Error(), true
		}
		fields := make(map[string]string, len(e.Fields))
		for _, fe := range e.Fields {
			fields[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fields, true

	case *core.DomainError:
		return kindCodes[e.Kind], e.Message, true
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

// newAppHTTPErrorHandler renders errors as JSON. Unexpected errors are reported with the caller's identity,
// and a core shutdown error asks the server to stop through signalShutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body, ok := errorResponse(err, translator)
		if !ok {
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
			}
			logger.Error(ctx.Request().Method+" "+ctx.Path(), err, usr)
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			body = err.Error()
		}
		if msg, isStr := body.(string); isStr {
			body = echo.Map{"error": msg}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
