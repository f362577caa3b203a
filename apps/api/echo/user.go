package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/user"
	avatarsvc "github.com/trezcool/sciencequest/services/avatar"
)

var (
	errUsrNotFoundInCtx  = errors.New("user object not found in echo.Context")
	errNoPermsToSetRoles = "permissão insuficiente para atribuir este perfil"
	errAvatarMissing     = "envie uma imagem no campo avatar"
)

type userApi struct {
	svc      user.Service
	avatars  avatarsvc.Store
	auth     *authenticator
	validate *validator.Validate
	logger   core.Logger
	conf     *core.Config
}

func registerUserAPI(g *echo.Group, auth *authenticator, deps ServerDeps) {
	api := userApi{
		svc:      deps.UserSvc,
		avatars:  deps.Avatars,
		auth:     auth,
		validate: deps.Validate,
		logger:   deps.Logger,
		conf:     deps.Conf,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)
	ug.POST("/register/student", api.registerStudent)
	ug.POST("/register/teacher", api.registerTeacher)

	// authed endpoints
	ag := ug.Group("", auth.required()...)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.PUT("/me", api.updateProfile)
	ag.PUT("/me/avatar", api.uploadAvatar)
	ag.POST("/register", api.create, adminMiddleware())
	ag.GET("", api.query, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.GET("/roles", api.queryRoles, adminMiddleware())
	ag.GET("/pending", api.pending, adminMiddleware())
	ag.POST("/:id/approve", api.approve, adminMiddleware())
	ag.POST("/:id/reject", api.reject, adminMiddleware())
	ag.POST("/:id/xp", api.awardXP, staffMiddleware())

	// detail endpoints
	dg := ag.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())

	g.GET("/leaderboard", api.leaderboard, auth.required()...)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, claims, err := api.auth.authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims, api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: &usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) registerStudent(ctx echo.Context) error {
	var data user.StudentRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentRegistration")
	}
	usr, err := api.svc.RegisterStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) registerTeacher(ctx echo.Context) error {
	var data user.TeacherRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherRegistration")
	}
	usr, err := api.svc.RegisterTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering teacher")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error(fmt.Sprintf("requesting password reset: %v", err), err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "Se o e-mail informado pertencer a uma conta ativa, você receberá em instantes " +
			"uma mensagem com as instruções para redefinir sua senha.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Sua senha foi redefinida."})
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	// ctxUser cannot set a role above their own
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if user.RolePriority(core.CleanString(data.Role, true)) > user.RolePriority(ctxUsr.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRoles})
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	params := ctx.QueryParams()
	filter := &user.QueryFilter{
		Search:   ctx.QueryParam("search"),
		Roles:    params["role"],
		Statuses: params["status"],
		SchoolID: ctx.QueryParam("school_id"),
		Class:    ctx.QueryParam("class"),
		Shift:    ctx.QueryParam("shift"),
	}
	var err error
	if filter.Grade, err = queryInt(ctx, "grade"); err != nil {
		return err
	}
	if filter.CreatedFrom, err = queryTime(ctx, "created_from"); err != nil {
		return err
	}
	if filter.CreatedTo, err = queryTime(ctx, "created_to"); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		// account and class data can only be changed by admin; users edit the rest on their profile
		if data.Username != "" || data.Email != "" || data.Role != "" || data.Status != "" || data.Verified != nil ||
			data.SchoolID != "" || data.Grade != 0 || data.Class != "" || data.Shift != "" {
			return errHttpForbidden
		}
	}

	// ctxUser cannot set a role above their own
	if user.RolePriority(core.CleanString(data.Role, true)) > user.RolePriority(ctxUsr.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRoles})
	}

	// changing one's own password needs the current one, as on the profile
	if data.Password != "" && ctxUsr.ID == usr.ID {
		if err = usr.CheckPassword(data.CurrentPassword); err != nil {
			return core.NewValidationError(user.ErrWrongPassword, core.FieldError{Field: "current_password", Error: user.ErrWrongPassword.Error()})
		}
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if _, err = api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	ids := ctx.QueryParams()["id"]
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	for _, id := range ids {
		if id == ctxUsr.ID {
			return errHttpForbidden
		}
	}

	if _, err = api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) pending(ctx echo.Context) error {
	users, err := api.svc.Pending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending teachers")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) approve(ctx echo.Context) error {
	usr, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving teacher")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) reject(ctx echo.Context) error {
	if err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "rejecting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) awardXP(ctx echo.Context) error {
	var data AwardXPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AwardXPRequest")
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	student, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	// teachers only reward students of their own school
	if ctxUsr.IsTeacher() && student.SchoolID != ctxUsr.SchoolID {
		return errHttpForbidden
	}

	usr, err := api.svc.AwardXP(ctx.Request().Context(), student.ID, data.Amount)
	if err != nil {
		return errors.Wrap(err, "awarding xp")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) leaderboard(ctx echo.Context) error {
	filter := user.LeaderboardFilter{
		SchoolID: ctx.QueryParam("school_id"),
		Class:    ctx.QueryParam("class"),
		Shift:    ctx.QueryParam("shift"),
	}
	var err error
	if filter.Grade, err = queryInt(ctx, "grade"); err != nil {
		return err
	}
	if filter.Limit, err = queryInt(ctx, "limit"); err != nil {
		return err
	}

	board, err := api.svc.Leaderboard(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "ranking students")
	}
	return ctx.JSON(http.StatusOK, board)
}

// Profile

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) uploadAvatar(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	file, err := ctx.FormFile("avatar")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "avatar", Error: errAvatarMissing})
	}
	contentType := file.Header.Get(echo.HeaderContentType)
	key, err := avatarsvc.Key(usr.ID, contentType, file.Size)
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return errors.Wrap(err, "opening avatar")
	}
	defer func() { _ = src.Close() }()

	url, err := api.avatars.Save(ctx.Request().Context(), key, src, file.Size, avatarsvc.ContentType(contentType))
	if err != nil {
		return errors.Wrap(err, "saving avatar")
	}
	usr, err = api.svc.SetAvatar(ctx.Request().Context(), usr, url)
	if err != nil {
		return errors.Wrap(err, "setting avatar")
	}
	return ctx.JSON(http.StatusOK, usr)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	AwardXPRequest struct {
		Amount int `json:"amount"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = strings.ToLower(core.CleanString(pr.Email))
	return validate.Struct(pr)
}
