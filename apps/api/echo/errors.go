package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/classroom"
	"github.com/trezcool/sciencequest/core/curriculum"
	"github.com/trezcool/sciencequest/core/gincana"
	"github.com/trezcool/sciencequest/core/quiz"
	"github.com/trezcool/sciencequest/core/school"
	"github.com/trezcool/sciencequest/core/user"
	avatarsvc "github.com/trezcool/sciencequest/services/avatar"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "usuário não autenticado")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "usuário ou senha inválidos")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "conta desativada")
	errAccountPending       = echo.NewHTTPError(http.StatusForbidden, "cadastro aguardando aprovação de um administrador")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "a renovação do token expirou")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permissão negada")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "não encontrado")

	// domain errors that are not server errors
	errStatuses = []struct {
		err  error
		code int
	}{
		{user.ErrNotFound, http.StatusNotFound},
		{user.ErrNotStudent, http.StatusBadRequest},
		{school.ErrCityNotFound, http.StatusNotFound},
		{school.ErrSchoolNotFound, http.StatusNotFound},
		{classroom.ErrNotFound, http.StatusNotFound},
		{classroom.ErrForbidden, http.StatusForbidden},
		{curriculum.ErrUnitNotFound, http.StatusNotFound},
		{curriculum.ErrInvalidGrade, http.StatusBadRequest},
		{quiz.ErrStudentsOnly, http.StatusForbidden},
		{quiz.ErrWrongGrade, http.StatusForbidden},
		{quiz.ErrUnitLocked, http.StatusForbidden},
		{quiz.ErrSessionNotFound, http.StatusNotFound},
		{quiz.ErrNoQuestions, http.StatusServiceUnavailable},
		{quiz.ErrTooManySessions, http.StatusServiceUnavailable},
		{gincana.ErrNotFound, http.StatusNotFound},
		{gincana.ErrForbidden, http.StatusForbidden},
		{gincana.ErrNotRunning, http.StatusConflict},
		{avatarsvc.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{avatarsvc.ErrUnsupported, http.StatusUnsupportedMediaType},
	}
)

func domainStatus(cause error) (int, bool) {
	for _, es := range errStatuses {
		if cause == es.err {
			return es.code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.ConflictError:
			code = http.StatusConflict
			message = origErr.Error()
		default:
			if status, ok := domainStatus(cause); ok {
				code = status
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			usr, _ := getContextUser(ctx)
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
