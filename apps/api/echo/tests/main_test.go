package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/hostel/apps/api/echo"
	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/feed"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/session"
	"github.com/trezcool/hostel/core/user"
	"github.com/trezcool/hostel/services/triage"
	inmemdb "github.com/trezcool/hostel/storage/database/inmem"
	"github.com/trezcool/hostel/testutil"
)

var (
	errMissingToken   = httpErr{Error: "missing or malformed jwt"}
	errSessionExpired = httpErr{Error: "session expired"}
	errForbidden      = httpErr{Error: "permission denied"}
)

type testEnv struct {
	app        *echoapi.Server
	conf       *core.Config
	db         *inmemdb.DB
	hostelRepo hostel.Repository
	usrRepo    user.Repository
	hostelSvc  *hostel.Service
	sessions   *session.Manager
	broker     *feed.Broker
	logger     *testutil.Logger
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	// set up DB & repos
	conf := testutil.Config()
	logger := new(testutil.Logger)
	db := inmemdb.Open()
	hostelRepo := inmemdb.NewHostelRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)

	// set up services
	validate, translator := testutil.Validator()
	broker := feed.NewBroker()
	hostelSvc := hostel.NewService(conf, hostelRepo, triage.Disabled{}, broker, logger)
	usrSvc := user.NewService(usrRepo, hostelSvc)
	sessions := session.NewManager(conf.Server.JWTExpirationDelta)
	t.Cleanup(sessions.Close)

	// set up server
	app := echoapi.NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&echoapi.Deps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			UserSvc:    usrSvc,
			HostelSvc:  hostelSvc,
			Sessions:   sessions,
			Feed:       broker,
			Health:     db.Ping,
		},
	)

	return &testEnv{
		app:        app,
		conf:       conf,
		db:         db,
		hostelRepo: hostelRepo,
		usrRepo:    usrRepo,
		hostelSvc:  hostelSvc,
		sessions:   sessions,
		broker:     broker,
		logger:     logger,
	}
}

// admin creates an administrator account and signs it in.
func (env *testEnv) admin(t *testing.T) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, env.usrRepo, "Warden", "warden@example.com", "", user.RoleAdmin, nil)
	return usr, getToken(t, env.app, usr)
}

// student creates a student record with a linked account and signs it in.
func (env *testEnv) student(t *testing.T, id string) (hostel.Student, string) {
	t.Helper()
	std := testutil.CreateStudent(t, env.hostelRepo, id, "2002-05-17", 50000, 0)
	usr := testutil.CreateUser(t, env.usrRepo, std.Name, std.Email, "", user.RoleStudent, &std.ID)
	return std, getToken(t, env.app, usr)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, app *echoapi.Server, usr user.User) string {
	token, err := app.IssueToken(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, app http.Handler, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}
