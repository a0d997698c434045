package echoapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/material"
	"github.com/trezcool/studyhub/core/quiz"
	"github.com/trezcool/studyhub/core/session"
	"github.com/trezcool/studyhub/core/todo"
	"github.com/trezcool/studyhub/core/user"
)

type (
	// SignedFiles serves files behind URLs signed by the disk blob backend.
	SignedFiles interface {
		Verify(path, expires, signature string) error
		Open(ctx context.Context, path string) (io.ReadCloser, error)
	}

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc     *user.Service
		GroupSvc    *group.Service
		SessionSvc  *session.Service
		TodoSvc     *todo.Service
		MaterialSvc *material.Service
		QuizSvc     *quiz.Service
		Blob        core.BlobStorage
		Files       SignedFiles // nil unless blobs are stored on disk
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	// routes are shared by the register functions.
	// Group.Use adds catch-all routes, so a prefix with middleware must be grouped only once:
	// a second api.Group("/groups", jwt) would shadow the routes on "" registered before it.
	routes struct {
		api    *echo.Group
		jwt    echo.MiddlewareFunc
		groups *echo.Group // /api/groups, authenticated
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	r := routes{api: api, jwt: jwt, groups: api.Group("/groups", jwt)}

	registerUserAPI(r, s.deps)
	registerGroupAPI(r, s.deps)
	registerSessionAPI(r, s.deps)
	registerTodoAPI(r, s.deps)
	registerMaterialAPI(r, s.deps)
	registerQuizAPI(r, s.deps)
	if s.deps.Files != nil {
		registerFilesAPI(api, s.deps.Files)
	}
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to StudyHub API!")
}
