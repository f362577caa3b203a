package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core/school"
)

type schoolApi struct {
	svc *school.Service
}

// Cities and schools are listed publicly so the registration pages can offer them.
func registerSchoolAPI(g *echo.Group, auth *authenticator, deps ServerDeps) {
	api := schoolApi{svc: deps.SchoolSvc}
	admin := append(auth.required(), adminMiddleware())

	cg := g.Group("/cities")
	cg.GET("", api.queryCities)
	cg.GET("/:id", api.retrieveCity)
	cg.POST("", api.createCity, admin...)
	cg.PUT("/:id", api.updateCity, admin...)
	cg.DELETE("/:id", api.destroyCity, admin...)

	sg := g.Group("/schools")
	sg.GET("", api.querySchools)
	sg.GET("/:id", api.retrieveSchool)
	sg.POST("", api.createSchool, admin...)
	sg.PUT("/:id", api.updateSchool, admin...)
	sg.DELETE("/:id", api.destroySchool, admin...)
}

// Cities

func (api *schoolApi) queryCities(ctx echo.Context) error {
	filter := &school.CityFilter{
		Search: ctx.QueryParam("search"),
		State:  ctx.QueryParam("state"),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	cities, err := api.svc.QueryCities(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying cities")
	}
	if cities == nil {
		cities = []school.City{}
	}
	return ctx.JSON(http.StatusOK, cities)
}

func (api *schoolApi) retrieveCity(ctx echo.Context) error {
	city, err := api.svc.GetCity(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding city")
	}
	return ctx.JSON(http.StatusOK, city)
}

func (api *schoolApi) createCity(ctx echo.Context) error {
	var data school.NewCity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCity")
	}
	city, err := api.svc.CreateCity(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating city")
	}
	return ctx.JSON(http.StatusCreated, city)
}

func (api *schoolApi) updateCity(ctx echo.Context) error {
	var data school.UpdateCity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCity")
	}
	city, err := api.svc.UpdateCity(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating city")
	}
	return ctx.JSON(http.StatusOK, city)
}

func (api *schoolApi) destroyCity(ctx echo.Context) error {
	if err := api.svc.DeleteCity(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting city")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Schools

func (api *schoolApi) querySchools(ctx echo.Context) error {
	filter := &school.SchoolFilter{
		Search:  ctx.QueryParam("search"),
		CityIDs: ctx.QueryParams()["city_id"],
		State:   ctx.QueryParam("state"),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, err := api.svc.QuerySchools(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieveSchool(ctx echo.Context) error {
	sch, err := api.svc.GetSchool(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) createSchool(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	sch, err := api.svc.CreateSchool(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) updateSchool(ctx echo.Context) error {
	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	sch, err := api.svc.UpdateSchool(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) destroySchool(ctx echo.Context) error {
	if err := api.svc.DeleteSchool(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.NoContent(http.StatusNoContent)
}
