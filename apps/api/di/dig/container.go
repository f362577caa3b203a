package dig_container

import (
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/sciencequest/apps/api/echo"
	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/classroom"
	"github.com/trezcool/sciencequest/core/curriculum"
	"github.com/trezcool/sciencequest/core/gincana"
	"github.com/trezcool/sciencequest/core/quiz"
	"github.com/trezcool/sciencequest/core/school"
	"github.com/trezcool/sciencequest/core/user"
	aisvc "github.com/trezcool/sciencequest/services/ai"
	avatarsvc "github.com/trezcool/sciencequest/services/avatar"
	emailsvc "github.com/trezcool/sciencequest/services/email"
	logsvc "github.com/trezcool/sciencequest/services/logger"
	notifysvc "github.com/trezcool/sciencequest/services/notify"
	"github.com/trezcool/sciencequest/storage/database"
	inmemdb "github.com/trezcool/sciencequest/storage/database/inmem"
	pgdb "github.com/trezcool/sciencequest/storage/database/postgres"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are the storage backends picked by conf.Database.Engine.
// Gincanas always live in memory.
type Repositories struct {
	dig.Out
	Users      user.Repository
	Schools    school.Repository
	Classrooms classroom.Repository
	Attempts   quiz.Repository
	Gincanas   gincana.Repository
}

// DBCloser releases the database connection.
type DBCloser func() error

func newLogger(conf *core.Config) core.Logger {
	std := logsvc.NewStdLogger(conf).With().Str("component", "api").Logger()
	return logsvc.NewRollbarLogger(std, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	std := logsvc.NewStdLogger(conf).With().Str("component", "db").Logger()
	return logsvc.NewRollbarLogger(std, conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (Repositories, DBCloser) {
	gincanas := inmemdb.NewGincanaRepository(inmemdb.Open())

	if conf.Database.Engine == "memory" {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on restart")
		db := inmemdb.Open()
		return Repositories{
			Users:      inmemdb.NewUserRepository(db),
			Schools:    inmemdb.NewSchoolRepository(db),
			Classrooms: inmemdb.NewClassroomRepository(db),
			Attempts:   inmemdb.NewAttemptRepository(db),
			Gincanas:   gincanas,
		}, func() error { return nil }
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return Repositories{
		Users:      pgdb.NewUserRepository(db),
		Schools:    pgdb.NewSchoolRepository(db),
		Classrooms: pgdb.NewClassroomRepository(db),
		Attempts:   pgdb.NewAttemptRepository(db),
		Gincanas:   gincanas,
	}, db.Close
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	return validate, translator
}

func newGenerator(conf *core.Config, logger core.Logger) quiz.Generator {
	if !conf.AIEnabled() {
		logger.Info("no AI key configured: quizzes are served from the question bank only")
		return nil
	}
	return aisvc.NewOpenAIGenerator(logger, conf)
}

func newSchoolService(repo school.Repository, validate *validator.Validate) (*school.Service, user.SchoolChecker) {
	svc := school.NewService(repo, validate)
	return svc, svc
}

func newQuizService(
	repo quiz.Repository,
	catalog *curriculum.Catalog,
	provider *quiz.Provider,
	users user.Service,
	conf *core.Config,
) *quiz.Service {
	return quiz.NewService(repo, catalog, provider, users, conf)
}

func newClassroomService(
	repo classroom.Repository,
	users user.Service,
	schools user.SchoolChecker,
	quizSvc *quiz.Service,
	validate *validator.Validate,
) *classroom.Service {
	return classroom.NewService(repo, users, schools, quizSvc, validate)
}

func newGincanaService(repo gincana.Repository, classrooms *classroom.Service, validate *validator.Validate) *gincana.Service {
	return gincana.NewService(repo, classrooms, validate)
}

type serverParams struct {
	dig.In
	Conf         *core.Config
	Logger       core.Logger
	Validate     *validator.Validate
	Translator   ut.Translator
	UserSvc      user.Service
	SchoolSvc    *school.Service
	ClassroomSvc *classroom.Service
	QuizSvc      *quiz.Service
	GincanaSvc   *gincana.Service
	Catalog      *curriculum.Catalog
	Avatars      avatarsvc.Store
}

func newServer(p serverParams) *echoapi.Server {
	// schools cannot be deleted while users or classrooms still point to them
	p.SchoolSvc.AddUsageCheckers(p.UserSvc, p.ClassroomSvc)

	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		UserSvc:      p.UserSvc,
		SchoolSvc:    p.SchoolSvc,
		ClassroomSvc: p.ClassroomSvc,
		QuizSvc:      p.QuizSvc,
		GincanaSvc:   p.GincanaSvc,
		Catalog:      p.Catalog,
		Avatars:      p.Avatars,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(notifysvc.NewNotifier))
	must(c.Provide(newValidator))
	must(c.Provide(avatarsvc.NewStore))
	must(c.Provide(curriculum.LoadCatalog))
	must(c.Provide(quiz.LoadBank))
	must(c.Provide(newGenerator))
	must(c.Provide(quiz.NewProvider))
	must(c.Provide(newSchoolService))
	must(c.Provide(user.NewService))
	must(c.Provide(newQuizService))
	must(c.Provide(newClassroomService))
	must(c.Provide(newGincanaService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
