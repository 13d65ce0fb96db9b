package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/session"
	"github.com/trezcool/hostel/core/user"
)

type studentApi struct {
	hostelApi
	users    *user.Service
	sessions *session.Manager
}

func registerStudentAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *hostel.Service,
	users *user.Service,
	sessions *session.Manager,
	validate *validator.Validate,
) {
	api := studentApi{
		hostelApi: hostelApi{svc: svc, validate: validate},
		users:     users,
		sessions:  sessions,
	}

	sg := g.Group("/students", authed...)
	sg.GET("", api.queryStudents, adminMiddleware())
	sg.POST("", api.createStudent, adminMiddleware())
	sg.GET("/available", api.queryAvailable, adminMiddleware())

	// detail endpoints
	sg.GET("/:id", api.retrieveStudent, ownerOrAdminMiddleware(user.ActionRead))
	sg.PUT("/:id", api.updateProfile, ownerOrAdminMiddleware(user.ActionWrite))
	sg.DELETE("/:id", api.destroyStudent, adminMiddleware())
	sg.PUT("/:id/fees", api.updateFees, adminMiddleware())
}

func (api *studentApi) queryStudents(ctx echo.Context) error {
	students, err := api.svc.QueryStudents(ctx.Request().Context(), hostel.StudentFilter{Search: ctx.QueryParam("search")})
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) queryAvailable(ctx echo.Context) error {
	students, err := api.svc.AvailableStudents(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying available students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) createStudent(ctx echo.Context) error {
	var data hostel.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) retrieveStudent(ctx echo.Context) error {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) updateProfile(ctx echo.Context) error {
	var data hostel.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.UpdateProfile(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, std)
}

// destroyStudent deletes the record and signs out the account linked to it.
func (api *studentApi) destroyStudent(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	id := ctx.Param("id")

	linked, err := api.users.GetByStudentID(rctx, id)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "finding user by student ID")
	}

	if err := api.svc.DeleteStudent(rctx, id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if linked.ID != "" {
		api.sessions.EndUser(linked.ID)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) updateFees(ctx echo.Context) error {
	var data hostel.UpdateFees
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFees")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.ApplyPayment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "applying payment")
	}
	return ctx.JSON(http.StatusOK, std)
}
