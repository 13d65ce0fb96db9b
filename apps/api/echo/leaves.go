package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/hostel"
)

func registerLeaveAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *hostel.Service, validate *validator.Validate) {
	api := hostelApi{svc: svc, validate: validate}

	lg := g.Group("/leave-requests", authed...)
	lg.GET("", api.queryLeaves)
	lg.POST("", api.requestLeave, studentMiddleware())
	lg.PUT("/:id/status", api.updateLeaveStatus, adminMiddleware())
}

func (api *hostelApi) queryLeaves(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	filter := hostel.LeaveFilter{Status: ctx.QueryParam("status")}
	if !id.IsAdmin() {
		if id.StudentID == "" {
			return errHttpForbidden
		}
		filter.StudentID = id.StudentID
	}

	leaves, err := api.svc.QueryLeaveRequests(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying leave requests")
	}
	return ctx.JSON(http.StatusOK, leaves)
}

func (api *hostelApi) requestLeave(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data hostel.NewLeaveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLeaveRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	leave, err := api.svc.RequestLeave(ctx.Request().Context(), id.StudentID, data)
	if err != nil {
		return errors.Wrap(err, "requesting leave")
	}
	return ctx.JSON(http.StatusCreated, leave)
}

func (api *hostelApi) updateLeaveStatus(ctx echo.Context) error {
	var data hostel.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := data.Validate(api.validate, hostel.LeavePending, hostel.LeaveApproved, hostel.LeaveRejected); err != nil {
		return err
	}

	leave, err := api.svc.UpdateLeaveStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "updating leave request status")
	}
	return ctx.JSON(http.StatusOK, leave)
}
