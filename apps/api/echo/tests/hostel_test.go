package tests

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/hostel/apps/api/echo"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/user"
	"github.com/trezcool/hostel/testutil"
)

func Test_roomApi(t *testing.T) {
	env := setup(t)
	_, adminToken := env.admin(t)
	s1, studentToken := env.student(t, "s1")
	s2 := testutil.CreateStudent(t, env.hostelRepo, "s2", "2003-01-09", 40000, 0)
	s3 := testutil.CreateStudent(t, env.hostelRepo, "s3", "2001-11-30", 40000, 0)

	t.Run("create", func(t *testing.T) {
		runTests(t, env.app, []httpTest{
			{name: "auth required", method: http.MethodPost, path: "/v1/rooms", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
			{
				name: "admin required", method: http.MethodPost, path: "/v1/rooms", token: studentToken,
				body: []byte(`{"number": "101", "capacity": 2}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
			},
			{
				name: "invalid", method: http.MethodPost, path: "/v1/rooms", token: adminToken,
				body: []byte(`{"number": "  ", "capacity": 0}`), wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"number": "this field is required", "capacity": "this field is required"}),
			},
		})

		req, rec := newAuthRequest(http.MethodPost, "/v1/rooms", adminToken, []byte(`{"number": "101", "capacity": 2, "price": 5000, "features": ["AC", " "]}`))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var room hostel.Room
		decode(t, rec, &room)
		assert.Equal(t, "101", room.Number)
		assert.Equal(t, hostel.RoomDouble, room.Type)
		assert.Equal(t, []string{"AC"}, room.Features)
		assert.Empty(t, room.Occupants)
	})

	rooms, err := env.hostelRepo.QueryRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	roomID := rooms[0].ID
	occupants := fmt.Sprintf("/v1/rooms/%s/occupants", roomID)
	allocate := func(id string) []byte { return marchallObj(t, echoapi.AllocateRequest{StudentID: id}) }

	t.Run("allocate", func(t *testing.T) {
		runTests(t, env.app, []httpTest{
			{
				name: "admin required", method: http.MethodPost, path: occupants, token: studentToken, body: allocate(s1.ID),
				wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
			},
			{
				name: "missing student", method: http.MethodPost, path: occupants, token: adminToken, body: []byte(`{}`),
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": "this field is required"}),
			},
			{name: "s1", method: http.MethodPost, path: occupants, token: adminToken, body: allocate(s1.ID), wantCode: http.StatusOK},
			{
				name: "s1 again", method: http.MethodPost, path: occupants, token: adminToken, body: allocate(s1.ID),
				wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: hostel.ErrAlreadyAllocated.Error()}),
			},
			{name: "s2", method: http.MethodPost, path: occupants, token: adminToken, body: allocate(s2.ID), wantCode: http.StatusOK},
			{
				name: "room full", method: http.MethodPost, path: occupants, token: adminToken, body: allocate(s3.ID),
				wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: hostel.ErrCapacityExceeded.Error()}),
			},
			{
				name: "unknown room", method: http.MethodPost, path: "/v1/rooms/nope/occupants", token: adminToken, body: allocate(s3.ID),
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: hostel.ErrRoomNotFound.Error()}),
			},
			{
				name: "unknown student", method: http.MethodPost, path: occupants, token: adminToken, body: allocate("nope"),
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: hostel.ErrStudentNotFound.Error()}),
			},
		})

		room, err := env.hostelRepo.GetRoom(context.Background(), roomID)
		require.NoError(t, err)
		assert.Equal(t, []string{s1.ID, s2.ID}, room.Occupants)

		std, err := env.hostelRepo.GetStudent(context.Background(), s1.ID)
		require.NoError(t, err)
		require.NotNil(t, std.RoomID)
		assert.Equal(t, roomID, *std.RoomID)
		assert.Equal(t, "101", std.RoomNumber)
	})

	t.Run("query", func(t *testing.T) {
		room, err := env.hostelRepo.GetRoom(context.Background(), roomID)
		require.NoError(t, err)
		runTests(t, env.app, []httpTest{
			{name: "student can read", path: "/v1/rooms", token: studentToken, wantCode: http.StatusOK, wantData: marchallList(t, room)},
			{name: "search by occupant name", path: "/v1/rooms?search=STUDENT%20S2", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, room)},
			{name: "search (unknown)", path: "/v1/rooms?search=zzz", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
			{name: "detail", path: "/v1/rooms/" + roomID, token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, room)},
			{
				name: "detail (unknown)", path: "/v1/rooms/nope", token: studentToken,
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: hostel.ErrRoomNotFound.Error()}),
			},
		})
	})

	t.Run("deallocate", func(t *testing.T) {
		runTests(t, env.app, []httpTest{
			{name: "s1", method: http.MethodDelete, path: occupants + "/" + s1.ID, token: adminToken, wantCode: http.StatusOK},
			{name: "s1 again is a no-op", method: http.MethodDelete, path: occupants + "/" + s1.ID, token: adminToken, wantCode: http.StatusOK},
		})

		room, err := env.hostelRepo.GetRoom(context.Background(), roomID)
		require.NoError(t, err)
		assert.Equal(t, []string{s2.ID}, room.Occupants)

		std, err := env.hostelRepo.GetStudent(context.Background(), s1.ID)
		require.NoError(t, err)
		assert.Nil(t, std.RoomID)
	})

	issues, err := env.hostelSvc.Audit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func Test_studentApi(t *testing.T) {
	env := setup(t)
	_, adminToken := env.admin(t)
	s1, s1Token := env.student(t, "s1")
	s2, _ := env.student(t, "s2")

	newStudent := hostel.NewStudent{
		Name:         "Asha Rao",
		Email:        "Asha.Rao@example.com",
		Course:       "B.Sc",
		Year:         2,
		PhoneNumber:  "+91 98765 43210",
		AadharNumber: "4321 8765 2109",
		TotalFees:    60000,
	}

	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", adminToken, marchallObj(t, newStudent))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var std hostel.Student
		decode(t, rec, &std)
		assert.NotEmpty(t, std.ID)
		assert.Equal(t, "asha.rao@example.com", std.Email)
		assert.Equal(t, "2000-01-01", std.DOB)
		assert.Nil(t, std.RoomID)
		assert.Zero(t, std.PaidFees)

		bad := newStudent
		bad.Email = "s3@example.com"
		bad.AadharNumber = "12345"
		runTests(t, env.app, []httpTest{
			{
				name: "admin required", method: http.MethodPost, path: "/v1/students", token: s1Token, body: marchallObj(t, newStudent),
				wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
			},
			{
				name: "duplicate email", method: http.MethodPost, path: "/v1/students", token: adminToken, body: marchallObj(t, newStudent),
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": hostel.ErrStudentEmailExists.Error()}),
			},
			{
				name: "invalid aadhar", method: http.MethodPost, path: "/v1/students", token: adminToken, body: marchallObj(t, bad),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{
					"aadhar_number": "aadhar_number must be a 12 digit national ID number (e.g. 1234-5678-9012)",
				}),
			},
		})
	})

	t.Run("access", func(t *testing.T) {
		runTests(t, env.app, []httpTest{
			{name: "list requires admin", path: "/v1/students", token: s1Token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
			{name: "own record", path: "/v1/students/" + s1.ID, token: s1Token, wantCode: http.StatusOK, wantData: marchallObj(t, s1)},
			{name: "other record", path: "/v1/students/" + s2.ID, token: s1Token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
			{name: "admin reads any", path: "/v1/students/" + s2.ID, token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, s2)},
			{
				name: "unknown", path: "/v1/students/nope", token: adminToken,
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: hostel.ErrStudentNotFound.Error()}),
			},
			{
				name: "other profile", method: http.MethodPut, path: "/v1/students/" + s2.ID, token: s1Token, body: []byte(`{"course": "M.Tech"}`),
				wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
			},
			{
				name: "fees require admin", method: http.MethodPut, path: "/v1/students/" + s1.ID + "/fees", token: s1Token,
				body: []byte(`{"mode": "set", "amount": 50000}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
			},
		})
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/students?search=asha", adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var students []hostel.Student
		decode(t, rec, &students)
		require.Len(t, students, 1)
		assert.Equal(t, "Asha Rao", students[0].Name)

		req, rec = newAuthRequest(http.MethodGet, "/v1/students/available", adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &students)
		assert.Len(t, students, 3)
	})

	t.Run("update profile", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/students/"+s1.ID, s1Token, []byte(`{"course": " M.Tech ", "phone_number": "9998887776"}`))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var std hostel.Student
		decode(t, rec, &std)
		assert.Equal(t, "M.Tech", std.Course)
		assert.Equal(t, "9998887776", std.PhoneNumber)
		assert.Equal(t, s1.Year, std.Year)
		assert.Equal(t, s1.AadharNumber, std.AadharNumber)

		runTests(t, env.app, []httpTest{
			{
				name: "invalid year", method: http.MethodPut, path: "/v1/students/" + s1.ID, token: s1Token, body: []byte(`{"year": 42}`),
				wantCode: http.StatusBadRequest,
			},
		})
	})

	t.Run("fees", func(t *testing.T) {
		fees := "/v1/students/" + s1.ID + "/fees"
		paid := func(mode string, amount, want int64) httpTest {
			return httpTest{
				name: fmt.Sprintf("%s %d", mode, amount), method: http.MethodPut, path: fees, token: adminToken,
				body:     marchallObj(t, hostel.UpdateFees{Mode: mode, Amount: amount}),
				wantCode: http.StatusOK, extra: want,
			}
		}
		for _, tt := range []httpTest{paid("add", 20000, 20000), paid("add", 10000, 30000), paid("set", 60000, 60000)} {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			var std hostel.Student
			decode(t, rec, &std)
			assert.Equal(t, tt.extra, std.PaidFees, tt.name)
		}

		runTests(t, env.app, []httpTest{
			{
				name: "unknown mode", method: http.MethodPut, path: fees, token: adminToken, body: []byte(`{"mode": "double", "amount": 10}`),
				wantCode: http.StatusBadRequest,
			},
			{
				name: "negative amount", method: http.MethodPut, path: fees, token: adminToken, body: []byte(`{"mode": "set", "amount": -1}`),
				wantCode: http.StatusBadRequest,
			},
		})
	})

	t.Run("delete", func(t *testing.T) {
		room := testutil.CreateRoom(t, env.hostelRepo, "201", 2)
		_, err := env.hostelSvc.Allocate(context.Background(), room.ID, s1.ID)
		require.NoError(t, err)

		runTests(t, env.app, []httpTest{
			{name: "admin required", method: http.MethodDelete, path: "/v1/students/" + s1.ID, token: s1Token, wantCode: http.StatusForbidden},
			{name: "delete", method: http.MethodDelete, path: "/v1/students/" + s1.ID, token: adminToken, wantCode: http.StatusNoContent},
			{name: "linked account signed out", path: "/v1/auth/me", token: s1Token, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errSessionExpired)},
			{
				name: "delete again", method: http.MethodDelete, path: "/v1/students/" + s1.ID, token: adminToken,
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: hostel.ErrStudentNotFound.Error()}),
			},
		})

		room, err = env.hostelRepo.GetRoom(context.Background(), room.ID)
		require.NoError(t, err)
		assert.Empty(t, room.Occupants)

		usr, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{Email: s1.Email})
		require.NoError(t, err)
		assert.Nil(t, usr.StudentID)
	})
}

func Test_grievanceApi(t *testing.T) {
	env := setup(t)
	_, adminToken := env.admin(t)
	s1, s1Token := env.student(t, "s1")
	s2, s2Token := env.student(t, "s2")

	submit := func(token, category, description string) hostel.Grievance {
		t.Helper()
		body := marchallObj(t, hostel.NewGrievance{Category: category, Description: description})
		req, rec := newAuthRequest(http.MethodPost, "/v1/grievances", token, body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var g hostel.Grievance
		decode(t, rec, &g)
		return g
	}

	g1 := submit(s1Token, "Plumbing", "The tap in the bathroom is leaking.")
	assert.Equal(t, s1.ID, g1.StudentID)
	assert.Equal(t, hostel.GrievancePending, g1.Status)
	assert.Equal(t, hostel.PriorityMedium, g1.Priority)
	assert.Equal(t, "AI Analysis unavailable (Missing API Key).", g1.AIAnalysis)

	time.Sleep(time.Millisecond) // distinct timestamps
	g2 := submit(s2Token, "Electrical", "The fan does not work.")
	assert.Equal(t, s2.ID, g2.StudentID)

	status := func(id string) string { return "/v1/grievances/" + id + "/status" }
	runTests(t, env.app, []httpTest{
		{
			name: "admin cannot submit", method: http.MethodPost, path: "/v1/grievances", token: adminToken,
			body: []byte(`{"category": "Other", "description": "x"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "blank description", method: http.MethodPost, path: "/v1/grievances", token: s1Token,
			body: []byte(`{"category": "Other", "description": "  "}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"description": "this field is required"}),
		},
		{name: "student sees own", path: "/v1/grievances", token: s1Token, wantCode: http.StatusOK, wantData: marchallList(t, g1)},
		{name: "admin sees all, newest first", path: "/v1/grievances", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, g2, g1)},
		{
			name: "student cannot resolve", method: http.MethodPut, path: status(g1.ID), token: s1Token,
			body: []byte(`{"status": "Resolved"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "invalid status", method: http.MethodPut, path: status(g1.ID), token: adminToken, body: []byte(`{"status": "Closed"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "status must be one of [Pending, In Progress, Resolved]"}),
		},
		{
			name: "unknown grievance", method: http.MethodPut, path: status("nope"), token: adminToken, body: []byte(`{"status": "Resolved"}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: hostel.ErrGrievanceNotFound.Error()}),
		},
	})

	req, rec := newAuthRequest(http.MethodPut, status(g1.ID), adminToken, []byte(`{"status": "resolved"}`))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	g1.Status = hostel.GrievanceResolved
	runTests(t, env.app, []httpTest{
		{name: "filter by status", path: "/v1/grievances?status=Resolved", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, g1)},
	})
}

func Test_leaveApi(t *testing.T) {
	env := setup(t)
	_, adminToken := env.admin(t)
	_, s1Token := env.student(t, "s1")
	_, s2Token := env.student(t, "s2")

	request := func(token, start, end string) hostel.LeaveRequest {
		t.Helper()
		body := marchallObj(t, hostel.NewLeaveRequest{Reason: "Family function", StartDate: start, EndDate: end})
		req, rec := newAuthRequest(http.MethodPost, "/v1/leave-requests", token, body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var l hostel.LeaveRequest
		decode(t, rec, &l)
		return l
	}

	l1 := request(s1Token, "2024-03-10", "2024-03-12")
	l2 := request(s2Token, "2024-04-01", "2024-04-01")
	assert.Equal(t, hostel.LeavePending, l1.Status)

	runTests(t, env.app, []httpTest{
		{
			name: "end before start", method: http.MethodPost, path: "/v1/leave-requests", token: s1Token,
			body:     []byte(`{"reason": "Trip", "start_date": "2024-03-10", "end_date": "2024-03-01"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"end_date": "end date cannot be before start date"}),
		},
		{
			name: "bad date", method: http.MethodPost, path: "/v1/leave-requests", token: s1Token,
			body:     []byte(`{"reason": "Trip", "start_date": "10/03/2024", "end_date": "2024-03-12"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"start_date": "start_date must be a date formatted as YYYY-MM-DD"}),
		},
		{name: "student sees own", path: "/v1/leave-requests", token: s2Token, wantCode: http.StatusOK, wantData: marchallList(t, l2)},
		{name: "admin sees all", path: "/v1/leave-requests", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, l2, l1)},
		{
			name: "student cannot approve", method: http.MethodPut, path: "/v1/leave-requests/" + l1.ID + "/status", token: s1Token,
			body: []byte(`{"status": "Approved"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "unknown leave request", method: http.MethodPut, path: "/v1/leave-requests/nope/status", token: adminToken,
			body: []byte(`{"status": "Approved"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: hostel.ErrLeaveRequestNotFound.Error()}),
		},
	})

	l1.Status = hostel.LeaveApproved
	runTests(t, env.app, []httpTest{
		{
			name: "approve", method: http.MethodPut, path: "/v1/leave-requests/" + l1.ID + "/status", token: adminToken,
			body: []byte(`{"status": "approved"}`), wantCode: http.StatusOK, wantData: marchallObj(t, l1),
		},
		{name: "filter by status", path: "/v1/leave-requests?status=Pending", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, l2)},
	})
}

func Test_noticeApi(t *testing.T) {
	env := setup(t)
	_, adminToken := env.admin(t)
	_, studentToken := env.student(t, "s1")

	req, rec := newAuthRequest(http.MethodPost, "/v1/notices", adminToken, []byte(`{"title": "Water supply", "content": "No water on Sunday.", "date": "2024-03-01"}`))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var n1 hostel.Notice
	decode(t, rec, &n1)
	assert.Equal(t, hostel.NoticeNormal, n1.Priority)

	n2, err := env.hostelSvc.CreateNotice(context.Background(), hostel.NewNotice{Title: "Fire drill", Content: "At 10am.", Priority: hostel.NoticeUrgent, Date: "2024-03-05"})
	require.NoError(t, err)

	runTests(t, env.app, []httpTest{
		{
			name: "admin required", method: http.MethodPost, path: "/v1/notices", token: studentToken,
			body: []byte(`{"title": "x", "content": "y"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "invalid priority", method: http.MethodPost, path: "/v1/notices", token: adminToken,
			body: []byte(`{"title": "x", "content": "y", "priority": "Critical"}`), wantCode: http.StatusBadRequest,
		},
		{name: "most recent first", path: "/v1/notices", token: studentToken, wantCode: http.StatusOK, wantData: marchallList(t, n2, n1)},
		{name: "student cannot delete", method: http.MethodDelete, path: "/v1/notices/" + n1.ID, token: studentToken, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: "/v1/notices/" + n1.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "delete again", method: http.MethodDelete, path: "/v1/notices/" + n1.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: hostel.ErrNoticeNotFound.Error()}),
		},
		{name: "remaining", path: "/v1/notices", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, n2)},
	})
}

func Test_dashboardApi(t *testing.T) {
	env := setup(t)
	_, adminToken := env.admin(t)
	_, studentToken := env.student(t, "s0")

	ctx := context.Background()
	r1 := testutil.CreateRoom(t, env.hostelRepo, "101", 4)
	r2 := testutil.CreateRoom(t, env.hostelRepo, "102", 5)
	today := time.Now().Format("01-02")
	for i := 1; i <= 5; i++ {
		dob := "2001-01-01"
		if i == 3 {
			dob = "2000-" + today
		}
		std := testutil.CreateStudent(t, env.hostelRepo, fmt.Sprintf("s%d", i), dob, 10000, int64(i-1)*2500)
		room := r1
		if i > 3 {
			room = r2
		}
		_, err := env.hostelSvc.Allocate(ctx, room.ID, std.ID)
		require.NoError(t, err)
	}

	get := func() echoapi.DashboardResponse {
		req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.DashboardResponse
		decode(t, rec, &resp)
		return resp
	}

	first := get()
	assert.Equal(t, 56, first.OccupancyRate) // 5 of 9 beds
	assert.Equal(t, 2, first.TotalRooms)
	assert.Equal(t, 6, first.TotalStudents)
	assert.Equal(t, 1, first.AvailableStudents)
	assert.Equal(t, int64(100000), first.Fees.TotalFees)
	assert.Equal(t, int64(25000), first.Fees.TotalCollected)
	assert.Equal(t, int64(75000), first.Fees.TotalPending)
	assert.Contains(t, first.Birthdays, "Student s3")

	// once per session
	assert.Empty(t, get().Birthdays)

	runTests(t, env.app, []httpTest{
		{name: "admin required", path: "/v1/dashboard", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
	})
}

func Test_financialsReport(t *testing.T) {
	env := setup(t)
	_, adminToken := env.admin(t)
	_, studentToken := env.student(t, "s0") // 50000 pending

	room := testutil.CreateRoom(t, env.hostelRepo, "101", 2)
	paid := testutil.CreateStudent(t, env.hostelRepo, "s1", "2001-01-01", 10000, 10000)
	_, err := env.hostelSvc.Allocate(context.Background(), room.ID, paid.ID)
	require.NoError(t, err)

	read := func(path string) [][]string {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "student_financials.csv")

		records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
		require.NoError(t, err)
		return records
	}

	all := read("/v1/reports/financials.csv")
	require.Len(t, all, 3)
	assert.Equal(t, "Student ID", all[0][0])
	assert.Equal(t, []string{"s0", "Not Allocated", "50000", "0", "50000", "Unpaid"}, []string{all[1][0], all[1][4], all[1][9], all[1][10], all[1][11], all[1][12]})
	assert.Equal(t, []string{"s1", "101", "0", "Paid"}, []string{all[2][0], all[2][4], all[2][11], all[2][12]})

	pending := read("/v1/reports/financials.csv?pending_only=true")
	require.Len(t, pending, 2)
	assert.Equal(t, "s0", pending[1][0])

	runTests(t, env.app, []httpTest{
		{name: "admin required", path: "/v1/reports/financials.csv", token: studentToken, wantCode: http.StatusForbidden},
	})
}
