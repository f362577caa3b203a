package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/gincana"
)

type gincanaApi struct {
	svc *gincana.Service
}

func registerGincanaAPI(g *echo.Group, auth *authenticator, deps ServerDeps) {
	api := gincanaApi{svc: deps.GincanaSvc}

	gg := g.Group("/gincanas", append(auth.required(), staffMiddleware())...)
	gg.GET("", api.query)
	gg.POST("", api.start)
	gg.GET("/:id", api.retrieve)
	gg.POST("/:id/points", api.addPoints)
	gg.POST("/:id/finish", api.finish)
}

func (api *gincanaApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	classroomID := core.CleanString(ctx.QueryParam("classroom_id"))
	if classroomID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "classroom_id", Error: "este campo é obrigatório"})
	}

	games, err := api.svc.Query(ctx.Request().Context(), actor, classroomID)
	if err != nil {
		return errors.Wrap(err, "querying gincanas")
	}
	if games == nil {
		games = []gincana.Gincana{}
	}
	return ctx.JSON(http.StatusOK, games)
}

func (api *gincanaApi) start(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data gincana.NewGincana
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGincana")
	}
	g, err := api.svc.Start(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "starting gincana")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *gincanaApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	g, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding gincana")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gincanaApi) addPoints(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data gincana.AddPoints
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddPoints")
	}
	g, err := api.svc.AddPoints(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding points")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gincanaApi) finish(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	g, err := api.svc.Finish(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finishing gincana")
	}
	return ctx.JSON(http.StatusOK, g)
}
