package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/user"
)

const (
	tokenAudience  = "StudyHub"
	contextUserKey = "user"
)

var (
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(core.Conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(Claims),
	}
	nowFunc = time.Now // mockable
)

// Claims are carried by the access token. OrigIssuedAt survives refreshes
// and bounds how long a session can be extended.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// HasAnyRole reports whether the claims hold one of roles. No roles means any.
func (c Claims) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, want := range roles {
		for _, got := range c.Roles {
			if got == want {
				return true
			}
		}
	}
	return false
}

func (c Claims) refreshableUntil() time.Time {
	return time.Unix(c.OrigIssuedAt, 0).Add(core.Conf.Server.JWTRefreshExpirationDelta)
}

// GetUserClaims returns fresh claims for usr. origIat carries the first issue time over a refresh.
func GetUserClaims(usr user.User, origIat ...int64) *Claims {
	now := nowFunc()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// GenerateToken signs claims with the application secret.
func GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(appJWTConfig.SigningMethod), claims)
	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// authenticate checks credentials and records the login.
func authenticate(ctx context.Context, uname, pwd string, svc *user.Service) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	switch {
	case errors.Cause(err) == user.ErrNotFound:
		return nil, errAuthenticationFailed
	case err != nil:
		return nil, errors.Wrap(err, "finding user by username or email")
	}

	if usr.CheckPassword(pwd) != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.IsActive {
		return nil, errAccountDeactivated
	}
	if usr, err = svc.SetLastLogin(ctx, usr); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(usr), nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token)
	if !ok {
		return Claims{}, errUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Claims{}, errUnauthorized
	}
	return *claims, nil
}

// getContextUser returns the authenticated user, loading it once per request.
// A token whose user is gone or deactivated is refused.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	switch {
	case errors.Cause(err) == user.ErrNotFound:
		return user.User{}, errUnauthorized
	case err != nil:
		return user.User{}, errors.Wrap(err, "finding user by ID")
	case !usr.IsActive:
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// refreshToken issues a new token for the caller until the refresh window closes.
func refreshToken(ctx echo.Context, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	if nowFunc().After(claims.refreshableUntil()) {
		return "", errRefreshExpired
	}
	return GenerateToken(GetUserClaims(usr, claims.OrigIssuedAt))
}
