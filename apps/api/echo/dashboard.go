package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/stats"
)

const financialsFilename = "student_financials.csv"

func registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *hostel.Service) {
	api := hostelApi{svc: svc}

	mw := append(append([]echo.MiddlewareFunc{}, authed...), adminMiddleware())
	g.GET("/dashboard", api.dashboard, mw...)
	g.GET("/reports/financials.csv", api.financials, mw...)
}

// DashboardResponse carries the birthdays of the day only the first time a session sees them.
type DashboardResponse struct {
	stats.Dashboard
	Birthdays []string `json:"birthdays,omitempty"`
}

func (api *hostelApi) dashboard(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}

	snap, err := api.svc.Snapshot(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "reading snapshot")
	}

	resp := DashboardResponse{Dashboard: stats.NewDashboard(snap)}
	for _, s := range sess.Birthdays.Check(snap.Students, nowFunc()) {
		resp.Birthdays = append(resp.Birthdays, s.Name)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *hostelApi) financials(ctx echo.Context) error {
	pendingOnly, _ := strconv.ParseBool(ctx.QueryParam("pending_only"))

	students, err := api.svc.QueryStudents(ctx.Request().Context(), hostel.StudentFilter{})
	if err != nil {
		return errors.Wrap(err, "querying students")
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+financialsFilename+`"`)
	resp.WriteHeader(http.StatusOK)
	return errors.Wrap(stats.WriteFinancialsCSV(resp, students, pendingOnly), "writing financials")
}
