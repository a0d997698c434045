package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/studyhub/apps/api/echo"
	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/user"
	"github.com/trezcool/studyhub/tests"
)

var (
	env     *testutil.App
	app     Server
	usrRepo user.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errNotMember    = httpErr{Error: "you are not a member of this group"}
)

func TestMain(m *testing.M) {
	var err error

	// set up DB, repos & services
	env, err = testutil.NewApp()
	if err != nil {
		fmt.Printf("testutil.NewApp(): %v", err)
		os.Exit(1)
	}
	usrRepo = env.Stores.Users

	core.ParseEmailTemplates(env.Logger)
	user.LoadCommonPasswords(env.Logger)

	// set up server
	app = newServer(env)

	// run tests
	code := m.Run()

	// clean up
	if err = env.Close(); err != nil {
		fmt.Printf("env.Close(): %v", err)
		os.Exit(1)
	}

	os.Exit(code)
}

func newServer(a *testutil.App) Server {
	a.Conf.TestMode = true
	a.Conf.Server.DisableReqLogs = true
	return NewServer(ServerDeps{
		Conf:        a.Conf,
		Logger:      a.Logger,
		Validate:    a.Validate,
		Translator:  a.Translator,
		UserSvc:     a.Users,
		GroupSvc:    a.Groups,
		SessionSvc:  a.Sessions,
		TodoSvc:     a.Todos,
		MaterialSvc: a.Materials,
		QuizSvc:     a.Quizzes,
		Blob:        a.Blob,
		Files:       a.Blob,
	})
}

func resetDB() {
	env.Reset()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// serve sends a request and returns the recorded response.
func serve(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
