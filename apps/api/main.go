package main

import (
	"log"
	"os"

	echoapi "github.com/kohlab/pyeongga/apps/api/echo"
	"github.com/kohlab/pyeongga/core"
	"github.com/kohlab/pyeongga/core/evaluation"
	classifiersvc "github.com/kohlab/pyeongga/services/classifier"
	emailsvc "github.com/kohlab/pyeongga/services/email"
	logsvc "github.com/kohlab/pyeongga/services/logger"
	"github.com/kohlab/pyeongga/storage/cache"
	"github.com/kohlab/pyeongga/storage/database"
	pgrepos "github.com/kohlab/pyeongga/storage/database/postgres"
)

func main() {
	std := log.New(os.Stdout, core.Conf.AppName+" : ", log.LstdFlags|log.Lshortfile)

	var logger core.Logger
	if core.Conf.Debug {
		logger = core.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(std, err)
	defer db.Close()
	errAndDie(std, database.Ping(db))
	errAndDie(std, database.Migrate(db))

	evalRepo := pgrepos.NewEvaluationRepository(db)
	notifRepo := pgrepos.NewNotificationRepository(db)

	// local snapshot mirror; the app still works without it
	var evalCache evaluation.Cache
	if localCache, cErr := cache.Open(core.Conf.Cache.Path); cErr != nil {
		logger.Warn("opening local cache", cErr)
	} else {
		defer localCache.Close()
		evalCache = localCache
	}

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	var collab core.TextClassifier
	if core.Conf.Classifier.Enabled {
		if collab, err = classifiersvc.NewGenAIClassifier(core.Conf); err != nil {
			logger.Warn("duplicate classifier disabled", err)
			collab = nil
		}
	}
	classifier := evaluation.NewDuplicateClassifier(evaluation.DefaultDuplicateRules(), collab, logger)
	dispatcher := evaluation.NewDispatcher(notifRepo, mailSvc, logger)

	evalSvc := evaluation.NewService(
		evalRepo, notifRepo, evalCache, classifier, dispatcher,
		evaluation.DefaultContentRules(), logger,
	)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Address: core.Conf.Server.Address(),
			EvalSvc: evalSvc,
			Logger:  logger,
		},
	)
	app.Start()
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
