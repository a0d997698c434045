package main

import (
	"errors"

	"github.com/trezcool/studyhub/storage/database"
)

var (
	migrateFunc = database.Migrate // mockable

	errNoSQLDatabase = errors.New("migrations require the postgres engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}
