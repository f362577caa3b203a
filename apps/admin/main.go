package main

import (
	"fmt"
	"os"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/school"
	"github.com/trezcool/sciencequest/core/user"
	emailsvc "github.com/trezcool/sciencequest/services/email"
	logsvc "github.com/trezcool/sciencequest/services/logger"
	notifysvc "github.com/trezcool/sciencequest/services/notify"
	"github.com/trezcool/sciencequest/storage/database"
	pgdb "github.com/trezcool/sciencequest/storage/database/postgres"
)

func main() {
	conf := core.NewConfig()
	std := logsvc.NewStdLogger(conf).With().Str("component", "admin").Logger()
	logger := logsvc.NewRollbarLogger(std, conf)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer db.Close()

	// set up services
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)
	user.LoadCommonPasswords(logger)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}
	notifier, err := notifysvc.NewNotifier(logger, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up notifier: %v", err), err)
	}

	schSvc := school.NewService(pgdb.NewSchoolRepository(db), validate)
	usrRepo := pgdb.NewUserRepository(db)

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: usrRepo,
		usrSvc:  user.NewService(usrRepo, schSvc, mailSvc, notifier, validate, logger, conf),
		schSvc:  schSvc,
		out:     os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}
