package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/classroom"
	"github.com/trezcool/sciencequest/core/curriculum"
	"github.com/trezcool/sciencequest/core/gincana"
	"github.com/trezcool/sciencequest/core/quiz"
	"github.com/trezcool/sciencequest/core/school"
	"github.com/trezcool/sciencequest/core/user"
	avatarsvc "github.com/trezcool/sciencequest/services/avatar"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc      user.Service
		SchoolSvc    *school.Service
		ClassroomSvc *classroom.Service
		QuizSvc      *quiz.Service
		GincanaSvc   *gincana.Service
		Catalog      *curriculum.Catalog
		Avatars      avatarsvc.Store
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: []string{conf.FrontendBaseURL}}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	if local, ok := s.deps.Avatars.(*avatarsvc.LocalStore); ok {
		s.app.Static(conf.Storage.PublicBaseURL, local.Dir())
	}

	v1 := s.app.Group("/v1")
	auth := newAuthenticator(conf, s.deps.UserSvc)

	registerUserAPI(v1, auth, s.deps)
	registerSchoolAPI(v1, auth, s.deps)
	registerClassroomAPI(v1, auth, s.deps)
	registerQuizAPI(v1, auth, s.deps)
	registerGincanaAPI(v1, auth, s.deps)
}

// Start listens on the configured host; failures are reported on Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Bem-vindo à API do ScienceQuest!")
}
