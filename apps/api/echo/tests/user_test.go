package tests

import (
	"bytes"
	"context"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studyhub/apps/api/echo"
	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/user"
	"github.com/trezcool/studyhub/tests"
)

func Test_userApi_signup(t *testing.T) {
	resetDB()

	existing := testutil.CreateStudent(t, usrRepo, "existing")
	newUser := func(uname, email string) user.NewUser {
		return user.NewUser{
			Name:            "Jane Doe",
			Username:        uname,
			Email:           email,
			Password:        "LolC@t123",
			PasswordConfirm: "LolC@t123",
			Subjects:        []string{"Math", "Physics"},
		}
	}

	t.Run("required fields", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/users/signup", "", []byte("{}"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var fields map[string]string
		unmarshal(t, rec, &fields)
		assert.Equal(t, "this field is required", fields["name"])
		assert.Equal(t, "this field is required", fields["password_confirm"])
		assert.Equal(t, "one of username or email is required", fields["email"])
	})

	t.Run("email taken", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/users/signup", "", marchallObj(t, newUser("janedoe", existing.Email)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"email": "a user with this email already exists"}`, rec.Body.String())
	})

	t.Run("roles are ignored", func(t *testing.T) {
		nu := newUser("janedoe", "jane@example.com")
		nu.Roles = []string{user.RoleAdminOwner}
		rec := serve(http.MethodPost, "/api/users/signup", "", marchallObj(t, nu))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp echoapi.SignupResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, []string{user.RoleStudent}, resp.User.Roles)
		assert.Equal(t, "janedoe", resp.User.Username)
		assert.Equal(t, []string{"Math", "Physics"}, resp.User.Subjects)
		assert.True(t, resp.User.IsActive)

		// the token authenticates the new user
		rec = serve(http.MethodGet, "/api/users/me", resp.Token)
		require.Equal(t, http.StatusOK, rec.Code)
		var me user.User
		unmarshal(t, rec, &me)
		assert.Equal(t, resp.User.ID, me.ID)
	})
}

func Test_userApi_login(t *testing.T) {
	resetDB()

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "LolC@t123", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "LolC@t123", []string{user.RoleStudent}, false)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.LoginRequest{Username: "this field is required", Password: "this field is required"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "unknown user", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/users/login"
	}
	runTests(t, tests)

	for _, uname := range []string{"hero", "HERO@test.cd"} {
		t.Run("success with "+uname, func(t *testing.T) {
			rec := serve(http.MethodPost, "/api/users/login", "", marchallObj(t, echoapi.LoginRequest{Username: uname, Password: "LolC@t123"}))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)

			usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
			require.NoError(t, err)
			assert.False(t, usr.LastLogin.IsZero(), "last login recorded")
		})
	}
}

func Test_userApi_profile(t *testing.T) {
	resetDB()

	student := testutil.CreateStudent(t, usrRepo, "hero01")
	other := testutil.CreateStudent(t, usrRepo, "other01")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	token := getToken(t, student)

	t.Run("update profile", func(t *testing.T) {
		body := []byte(`{"bio": "  I like maths ", "subjects": ["Algebra", " Calculus "], "study_style": "visual", "timezone": "Africa/Kinshasa"}`)
		rec := serve(http.MethodPut, "/api/users/me", token, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "I like maths", usr.Bio)
		assert.Equal(t, []string{"Algebra", "Calculus"}, usr.Subjects)
		assert.Equal(t, "visual", usr.StudyStyle)
		assert.Equal(t, "Africa/Kinshasa", usr.Timezone)
		assert.Equal(t, student.Name, usr.Name, "untouched")
	})

	t.Run("invalid timezone", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/users/me", token, []byte(`{"timezone": "Mars/Olympus"}`))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"timezone": "unknown timezone"}`, rec.Body.String())
	})

	tests := []httpTest{
		{name: "own profile", path: "/api/users/" + student.ID, token: token},
		{name: "someone else's", path: "/api/users/" + other.ID, token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{name: "admin sees all", path: "/api/users/" + other.ID, token: getToken(t, admin), wantData: marchallObj(t, other)},
		{name: "no avatar", path: "/api/users/" + other.ID + "/avatar", token: getToken(t, other), wantCode: http.StatusNotFound},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runTests(t, tests)
}

func Test_userApi_userQuery(t *testing.T) {
	resetDB()

	path := func(search, ordering string, createdFrom, createdTo time.Time, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now().Truncate(time.Second)
	t1 := now.Add(1 * time.Hour)
	t2 := now.Add(2 * time.Hour)
	t3 := now.Add(3 * time.Hour)
	t4 := now.Add(4 * time.Hour)
	t5 := now.Add(5 * time.Hour)

	usr1 := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "", nil, true, t1)
	usr2 := testutil.CreateUser(t, usrRepo, "King", "user02", "king@test.cd", "", nil, true, now.Add(-3*time.Minute))
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true, now.Add(-2*time.Minute))
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true, t2)
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleAdminOwner}, true, now.Add(-1*time.Minute))
	tutor := testutil.CreateUser(t, usrRepo, "Tutor", "tutor", "tutor@test.cd", "", []string{user.RoleStudent}, true, t3)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false, now) // 😂

	adminToken := getToken(t, admin)
	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/api/users", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/api/users", token: adminToken,
			wantData: marchallList(t, tutor, admin, usr1, naughty, owner, student, usr2),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", "", time.Time{}, time.Time{}, nil), token: adminToken, wantData: empty},
		{
			name: "search=USE", path: path("USE", "", time.Time{}, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, usr1, student, usr2),
		},
		{name: "role (unknown)", path: path("", "", time.Time{}, time.Time{}, nil, "lol"), token: adminToken, wantData: empty},
		{
			name: "role=admin:", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleAdmin),
			token: adminToken, wantData: marchallList(t, admin, owner),
		},
		{
			name: "role=student:", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleStudent),
			token: adminToken, wantData: marchallList(t, tutor, naughty, student),
		},
		{name: "is_active=false", path: path("", "", time.Time{}, time.Time{}, bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "created_from", path: path("", "", t1, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, tutor, admin, usr1),
		},
		{name: "created_from - created_to (empty)", path: path("", "", t4, t5, nil), token: adminToken, wantData: empty},
		{name: "created_from - created_to (found)", path: path("", "", t1, t2, nil), token: adminToken, wantData: marchallList(t, admin, usr1)},
		{
			name: "all combo (found)", path: path("tut", "", t1, t5, bPtr(true), user.RoleStudent),
			token: adminToken, wantData: marchallList(t, tutor),
		},
		// ordering
		{
			name: "order by created_at", path: path("", "created_at", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, usr2, student, owner, naughty, usr1, admin, tutor),
		},
		{
			name: "order by is_active,-name", path: path("", "is_active,-name", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, naughty, usr1, tutor, owner, usr2, student, admin),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runTests(t, tests)
}

func Test_userApi_userRefreshToken(t *testing.T) {
	resetDB()

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false) // 😂
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   student.ID,
			Audience:  "StudyHub",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsAdmin:      student.IsAdmin(),
		Roles:        student.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				require.Equal(t, tt.wantCode, rec.Code)
				var respData echoapi.LoginResponse
				unmarshal(t, rec, &respData)
				assert.NotEmpty(t, respData.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userResetPassword(t *testing.T) {
	resetDB()

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	pathRegex := regexp.MustCompile("/password-reset/.+/.+")

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "inactive user", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: naughty.Email}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: student.Name, Address: student.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			env.Mail.Reset()

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			extra, ok := tt.extra.(extraTest)
			if !ok {
				return
			}
			sent := env.Mail.Sent()
			if !extra.emailSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			msg := sent[0]
			assert.Equal(t, extra.to, msg.To[0])
			assert.Contains(t, msg.TextContent, extra.to.Name)
			assert.Contains(t, msg.HTMLContent, extra.to.Name)
			assert.Regexp(t, pathRegex, msg.TextContent)
			assert.Regexp(t, pathRegex, msg.HTMLContent)
		})
	}
}

func Test_userApi_userConfirmPasswordReset(t *testing.T) {
	resetDB()

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "lol", []string{user.RoleStudent}, true)
	validUID := user.EncodeUID(student)
	validToken, err := user.MakeToken(student)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	// generate an expired token
	dayLate := core.Conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	user.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := user.MakeToken(student)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}
	user.NowFunc = time.Now // reset

	reqMsg := "this field is required"
	invalidToken := marchallObj(t, user.ResetUserPassword{Token: "invalid or expired token"})
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: reqMsg, PasswordConfirm: reqMsg}),
		},
		{
			name: "invalid pwd: min len", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: no whitespace", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "l o loll", PasswordConfirm: "l o loll"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must not contain whitespace"}),
		},
		{
			name: "invalid pwd: not all numeric", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "12345678", PasswordConfirm: "12345678"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password cannot be entirely numeric"}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "invalid pwd: too common", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "P@$$w0rd", PasswordConfirm: "P@$$w0rd"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password is too common"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "bG9s", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: invalidToken,
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: invalidToken,
		},
		{
			name: "expired token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: expiredToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: invalidToken,
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshedStudent, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
				require.NoError(t, err)
				assert.False(t, bytes.Equal(refreshedStudent.PasswordHash, student.PasswordHash), "password updated")
			}
		})
	}
}

func Test_userApi_destroy(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateStudent(t, usrRepo, "hero01")
	token := getToken(t, admin)

	rec := serve(http.MethodDelete, "/api/users/"+admin.ID, token)
	assert.Equal(t, http.StatusForbidden, rec.Code, "cannot delete themselves")

	rec = serve(http.MethodDelete, "/api/users/"+student.ID, token)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	_, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	assert.Equal(t, user.ErrNotFound, err)

	// tokens of deleted users are refused
	rec = serve(http.MethodGet, "/api/users/me", getToken(t, student))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "user not authenticated"))
}
