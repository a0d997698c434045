package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/todo"
	"github.com/trezcool/studyhub/storage/database"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.Conf

	// set up DB
	var (
		db     *sql.DB
		stores *database.Stores
		err    error
	)
	if conf.Database.Engine == "memory" {
		stores, _ = database.NewMemoryStores()
	} else {
		db, err = database.OpenSQL(conf)
		errAndDie(err)
		stores = database.NewSQLStores(db)
	}
	defer stores.Close()

	cache := core.NewCache(conf)
	grpSvc := group.NewService(stores.Groups, stores.Tx, cache, conf)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: stores.Users,
		todoSvc: todo.NewService(stores.Todos, stores.Tx, grpSvc, cache, conf),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
