package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/material"
	"github.com/trezcool/studyhub/core/quiz"
	"github.com/trezcool/studyhub/core/session"
	"github.com/trezcool/studyhub/core/todo"
	"github.com/trezcool/studyhub/core/user"
	blobsvc "github.com/trezcool/studyhub/services/blob"
	emailsvc "github.com/trezcool/studyhub/services/email"
	logsvc "github.com/trezcool/studyhub/services/logger"
	"github.com/trezcool/studyhub/services/quizgen"
	"github.com/trezcool/studyhub/storage/database"
	dummydb "github.com/trezcool/studyhub/storage/database/dummy"
)

// App wires every service on an in-memory database, a temporary disk blob store and a recording mailer.
type App struct {
	Conf       *core.Config
	DB         *dummydb.DB
	Stores     *database.Stores
	Logger     core.Logger
	Mail       *emailsvc.ConsoleService
	Blob       *blobsvc.Disk
	Cache      *core.Cache
	Validate   *validator.Validate
	Translator ut.Translator

	Users     *user.Service
	Groups    *group.Service
	Sessions  *session.Service
	Todos     *todo.Service
	Materials *material.Service
	Quizzes   *quiz.Service

	blobDir string
}

// NewLogger returns a logger that discards its output and never reports.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), core.Conf)
	logger.Enable(false)
	return logger
}

// NewApp builds an App from a copy of core.Conf. gen defaults to the local quiz generator.
func NewApp(gen ...quiz.Generator) (*App, error) {
	conf := *core.Conf
	dir, err := os.MkdirTemp("", "studyhub-blobs-")
	if err != nil {
		return nil, err
	}
	conf.Blob.Backend = "disk"
	conf.Blob.Dir = dir

	blob, err := blobsvc.NewDisk(&conf)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	stores, db := database.NewMemoryStores()
	logger := NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(logger, &conf)
	cache := core.NewCache(&conf)

	var generator quiz.Generator = quizgen.Local{}
	if len(gen) > 0 {
		generator = gen[0]
	}

	app := &App{
		Conf:    &conf,
		DB:      db,
		Stores:  stores,
		Logger:  logger,
		Mail:    mailSvc,
		Blob:    blob,
		Cache:   cache,
		blobDir: dir,
	}
	app.Users = user.NewService(stores.Users, mailSvc, blob, logger)
	app.Materials = material.NewService(stores.Materials, blob, logger, &conf)
	app.Groups = group.NewService(stores.Groups, stores.Tx, cache, &conf, app.Materials)
	app.Sessions = session.NewService(stores.Sessions, stores.Tx, app.Groups, app.Users, mailSvc, logger, &conf)
	app.Todos = todo.NewService(stores.Todos, stores.Tx, app.Groups, cache, &conf)
	app.Quizzes = quiz.NewService(stores.Quizzes, stores.Tx, generator, app.Materials, app.Todos, logger, &conf)
	app.Groups.AddCleaners(app.Quizzes)

	app.Translator = core.NewTranslator()
	app.Validate = validator.New()
	core.InitValidators(app.Validate, app.Translator)
	user.InitValidators(app.Validate, app.Translator)
	session.InitValidators(app.Validate, app.Translator)
	return app, nil
}

// Reset empties the database, the cache and the mailbox.
func (app *App) Reset() {
	app.DB.Flush()
	app.Cache.Flush()
	app.Mail.Reset()
}

// Close removes the blob directory.
func (app *App) Close() error {
	return os.RemoveAll(app.blobDir)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		Subjects:  []string{},
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student named after uname, with password "pwd".
func CreateStudent(t *testing.T, repo user.Repository, uname string) user.User {
	return CreateUser(t, repo, uname, uname, uname+"@example.com", "pwd", []string{user.RoleStudent}, true)
}

// CreateGroup creates a public group owned by ownerID and adds the given members.
func CreateGroup(t *testing.T, svc *group.Service, ownerID, name string, memberIDs ...string) group.Group {
	ctx := context.Background()
	grp, err := svc.Create(ctx, ownerID, group.NewGroup{Name: name})
	if err != nil {
		t.Fatalf("createGroup() failed: %v", err)
	}
	for _, id := range memberIDs {
		if _, err = svc.Join(ctx, grp.ID, id); err != nil {
			t.Fatalf("createGroup(): joining %s failed: %v", id, err)
		}
	}
	if grp, err = svc.Get(ctx, grp.ID); err != nil {
		t.Fatalf("createGroup() failed: %v", err)
	}
	return grp
}

// CreateNote creates a note material in groupID.
func CreateNote(t *testing.T, svc *material.Service, groupID, userID, title, content string) material.Material {
	mat, err := svc.Create(context.Background(), groupID, userID, material.NewMaterial{
		Title:   title,
		Content: content,
		Kind:    material.KindNote,
	})
	if err != nil {
		t.Fatalf("createNote() failed: %v", err)
	}
	return mat
}
