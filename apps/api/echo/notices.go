package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/hostel"
)

func registerNoticeAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *hostel.Service, validate *validator.Validate) {
	api := hostelApi{svc: svc, validate: validate}

	ng := g.Group("/notices", authed...)
	ng.GET("", api.queryNotices)
	ng.POST("", api.createNotice, adminMiddleware())
	ng.DELETE("/:id", api.destroyNotice, adminMiddleware())
}

func (api *hostelApi) queryNotices(ctx echo.Context) error {
	notices, err := api.svc.QueryNotices(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying notices")
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *hostelApi) createNotice(ctx echo.Context) error {
	var data hostel.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	notice, err := api.svc.CreateNotice(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notice")
	}
	return ctx.JSON(http.StatusCreated, notice)
}

func (api *hostelApi) destroyNotice(ctx echo.Context) error {
	if err := api.svc.DeleteNotice(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}
