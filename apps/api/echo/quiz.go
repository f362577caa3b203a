package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/curriculum"
	"github.com/trezcool/sciencequest/core/quiz"
	"github.com/trezcool/sciencequest/core/user"
)

type quizApi struct {
	svc      *quiz.Service
	users    user.Service
	catalog  *curriculum.Catalog
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, auth *authenticator, deps ServerDeps) {
	api := quizApi{
		svc:      deps.QuizSvc,
		users:    deps.UserSvc,
		catalog:  deps.Catalog,
		validate: deps.Validate,
	}
	student := append(auth.required(), studentMiddleware())

	g.GET("/curriculum/units", api.units, auth.required()...)
	g.GET("/skillmap", api.skillMap, student...)

	qg := g.Group("/quizzes", auth.required()...)
	qg.POST("", api.start, studentMiddleware())
	qg.POST("/:id/submit", api.submit, studentMiddleware())
	qg.GET("/attempts", api.attempts)
}

// units lists a grade's curriculum; students default to their own grade.
func (api *quizApi) units(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	grade, err := queryInt(ctx, "grade")
	if err != nil {
		return err
	}
	if grade == 0 && usr.IsStudent() {
		grade = usr.Grade
	}
	if grade < core.MinGrade || grade > core.MaxGrade {
		return core.NewValidationError(curriculum.ErrInvalidGrade, core.FieldError{Field: "grade", Error: curriculum.ErrInvalidGrade.Error()})
	}
	return ctx.JSON(http.StatusOK, api.catalog.Units(grade))
}

func (api *quizApi) skillMap(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	units, err := api.svc.SkillMap(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building skill map")
	}
	return ctx.JSON(http.StatusOK, units)
}

func (api *quizApi) start(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data StartQuizRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartQuizRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Start(ctx.Request().Context(), usr, data.UnitCode, data.Size)
	if err != nil {
		return errors.Wrap(err, "starting quiz")
	}
	return ctx.JSON(http.StatusCreated, sess.View())
}

func (api *quizApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data quiz.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusOK, res)
}

// attempts lists quiz attempts, newest first. Students see their own; staff pick a student
// (teachers within their school) or, for admins, everyone.
func (api *quizApi) attempts(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := &quiz.AttemptFilter{UnitCode: ctx.QueryParam("unit_code")}
	switch studentID := ctx.QueryParam("student_id"); {
	case usr.IsStudent():
		filter.StudentIDs = []string{usr.ID}
	case studentID != "":
		student, err := api.users.GetByID(ctx.Request().Context(), studentID)
		if err != nil {
			return errors.Wrap(err, "finding student")
		}
		if usr.IsTeacher() && student.SchoolID != usr.SchoolID {
			return errHttpForbidden
		}
		filter.StudentIDs = []string{student.ID}
	case !usr.IsAdmin():
		return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "este campo é obrigatório"})
	}
	if filter.SubmittedFrom, err = queryTime(ctx, "submitted_from"); err != nil {
		return err
	}
	if filter.SubmittedTo, err = queryTime(ctx, "submitted_to"); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	atts, err := api.svc.Attempts(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if atts == nil {
		atts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, atts)
}

type StartQuizRequest struct {
	UnitCode string `json:"unit_code" validate:"required"`
	Size     int    `json:"size" validate:"min=0,max=20"`
}

func (sr *StartQuizRequest) Validate(validate *validator.Validate) error {
	sr.UnitCode = core.CleanString(sr.UnitCode)
	return validate.Struct(sr)
}
