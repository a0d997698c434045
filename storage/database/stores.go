package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/material"
	"github.com/trezcool/studyhub/core/quiz"
	"github.com/trezcool/studyhub/core/session"
	"github.com/trezcool/studyhub/core/todo"
	"github.com/trezcool/studyhub/core/user"
	dummydb "github.com/trezcool/studyhub/storage/database/dummy"
	sqlxrepos "github.com/trezcool/studyhub/storage/database/sqlx"
)

// Stores groups the repositories of one storage engine and the Transactor they share.
type Stores struct {
	Tx        core.Transactor
	Users     user.Repository
	Groups    group.Repository
	Sessions  session.Repository
	Todos     todo.Repository
	Materials material.Repository
	Quizzes   quiz.Repository

	close func() error
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// NewMemoryStores returns Stores backed by a fresh in-memory database.
func NewMemoryStores() (*Stores, *dummydb.DB) {
	db, _ := dummydb.Open()
	return &Stores{
		Tx:        db,
		Users:     dummydb.NewUserRepository(db),
		Groups:    dummydb.NewGroupRepository(db),
		Sessions:  dummydb.NewSessionRepository(db),
		Todos:     dummydb.NewTodoRepository(db),
		Materials: dummydb.NewMaterialRepository(db),
		Quizzes:   dummydb.NewQuizRepository(db),
	}, db
}

// NewStores opens the configured storage engine.
// For postgres, the database is created if needed and migrated up.
func NewStores(conf *core.Config) (*Stores, error) {
	switch conf.Database.Engine {
	case "memory":
		stores, _ := NewMemoryStores()
		return stores, nil
	case "postgres":
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}

	sqlDB, err := OpenSQL(conf)
	if err != nil {
		return nil, err
	}
	if err = Migrate(sqlDB, "up"); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return NewSQLStores(sqlDB), nil
}

// OpenSQL creates the postgres database if needed and opens it, waiting for it to be ready.
func OpenSQL(conf *core.Config) (*sql.DB, error) {
	if err := CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	sqlDB, err := Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(context.Background(), sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	return sqlDB, nil
}

// NewSQLStores returns Stores backed by an open postgres database. Closing them closes sqlDB.
func NewSQLStores(sqlDB *sql.DB) *Stores {
	db := sqlx.NewDb(sqlDB, "postgres")
	return &Stores{
		Tx:        sqlxrepos.NewTransactor(db),
		Users:     sqlxrepos.NewUserRepository(db),
		Groups:    sqlxrepos.NewGroupRepository(db),
		Sessions:  sqlxrepos.NewSessionRepository(db),
		Todos:     sqlxrepos.NewTodoRepository(db),
		Materials: sqlxrepos.NewMaterialRepository(db),
		Quizzes:   sqlxrepos.NewQuizRepository(db),
		close:     db.Close,
	}
}
