package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/hostel"
)

type hostelApi struct {
	svc      *hostel.Service
	validate *validator.Validate
}

func registerRoomAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *hostel.Service, validate *validator.Validate) {
	api := hostelApi{svc: svc, validate: validate}

	rg := g.Group("/rooms", authed...)
	rg.GET("", api.queryRooms)
	rg.POST("", api.createRoom, adminMiddleware())
	rg.GET("/:id", api.retrieveRoom)
	rg.POST("/:id/occupants", api.allocate, adminMiddleware())
	rg.DELETE("/:id/occupants/:studentID", api.deallocate, adminMiddleware())
}

func (api *hostelApi) queryRooms(ctx echo.Context) error {
	rooms, err := api.svc.QueryRooms(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying rooms")
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *hostelApi) createRoom(ctx echo.Context) error {
	var data hostel.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoom")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	room, err := api.svc.CreateRoom(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating room")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *hostelApi) retrieveRoom(ctx echo.Context) error {
	room, err := api.svc.GetRoom(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding room by ID")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *hostelApi) allocate(ctx echo.Context) error {
	var data AllocateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AllocateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	room, err := api.svc.Allocate(ctx.Request().Context(), ctx.Param("id"), data.StudentID)
	if err != nil {
		return errors.Wrap(err, "allocating student")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *hostelApi) deallocate(ctx echo.Context) error {
	room, err := api.svc.Deallocate(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentID"))
	if err != nil {
		return errors.Wrap(err, "deallocating student")
	}
	return ctx.JSON(http.StatusOK, room)
}

type AllocateRequest struct {
	StudentID string `json:"student_id" validate:"required,notblank"`
}

func (ar *AllocateRequest) Validate(validate *validator.Validate) error {
	ar.StudentID = core.CleanString(ar.StudentID)
	return validate.Struct(ar)
}
