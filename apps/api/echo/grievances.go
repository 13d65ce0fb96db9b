package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/hostel"
)

func registerGrievanceAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *hostel.Service, validate *validator.Validate) {
	api := hostelApi{svc: svc, validate: validate}

	gg := g.Group("/grievances", authed...)
	gg.GET("", api.queryGrievances)
	gg.POST("", api.submitGrievance, studentMiddleware())
	gg.PUT("/:id/status", api.updateGrievanceStatus, adminMiddleware())
}

// queryGrievances lists every grievance to admins and only their own to students.
func (api *hostelApi) queryGrievances(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	filter := hostel.GrievanceFilter{Status: ctx.QueryParam("status")}
	if !id.IsAdmin() {
		if id.StudentID == "" {
			return errHttpForbidden
		}
		filter.StudentID = id.StudentID
	}

	grievances, err := api.svc.QueryGrievances(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying grievances")
	}
	return ctx.JSON(http.StatusOK, grievances)
}

func (api *hostelApi) submitGrievance(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data hostel.NewGrievance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrievance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grievance, err := api.svc.SubmitGrievance(ctx.Request().Context(), id.StudentID, data)
	if err != nil {
		return errors.Wrap(err, "submitting grievance")
	}
	return ctx.JSON(http.StatusCreated, grievance)
}

func (api *hostelApi) updateGrievanceStatus(ctx echo.Context) error {
	var data hostel.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := data.Validate(api.validate, hostel.GrievancePending, hostel.GrievanceInProgress, hostel.GrievanceResolved); err != nil {
		return err
	}

	grievance, err := api.svc.UpdateGrievanceStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "updating grievance status")
	}
	return ctx.JSON(http.StatusOK, grievance)
}
