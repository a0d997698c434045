package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/studyhub/apps/api/echo"
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
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.Conf

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	stores, err := database.NewStores(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = stores.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up blob storage
	blob, err := blobsvc.New(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up blob storage: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridAPIKey == "" {
		mailSvc = emailsvc.NewConsoleService(logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}
	cache := core.NewCache(conf)

	usrSvc := user.NewService(stores.Users, mailSvc, blob, logger)
	matSvc := material.NewService(stores.Materials, blob, logger, conf)
	grpSvc := group.NewService(stores.Groups, stores.Tx, cache, conf, matSvc)
	sessSvc := session.NewService(stores.Sessions, stores.Tx, grpSvc, usrSvc, mailSvc, logger, conf)
	todoSvc := todo.NewService(stores.Todos, stores.Tx, grpSvc, cache, conf)
	quizSvc := quiz.NewService(stores.Quizzes, stores.Tx, quizgen.New(conf), matSvc, todoSvc, logger, conf)
	grpSvc.AddCleaners(quizSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	session.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	deps := echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		UserSvc:     usrSvc,
		GroupSvc:    grpSvc,
		SessionSvc:  sessSvc,
		TodoSvc:     todoSvc,
		MaterialSvc: matSvc,
		QuizSvc:     quizSvc,
		Blob:        blob,
	}
	if disk, ok := blob.(*blobsvc.Disk); ok {
		deps.Files = disk
	}
	server := echoapi.NewServer(deps)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
