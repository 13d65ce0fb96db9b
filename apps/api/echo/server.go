package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/feed"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/session"
	"github.com/trezcool/hostel/core/user"
)

type (
	// HealthCheck reports whether the entity store is reachable.
	HealthCheck func(ctx context.Context) error

	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		UserSvc    *user.Service
		HostelSvc  *hostel.Service
		Sessions   *session.Manager
		Feed       *feed.Broker
		Health     HealthCheck
	}

	Server struct {
		address  string
		deps     *Deps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

// NewServer sets up the API. shutdown receives the OS signals that stop the server; it may be nil.
func NewServer(address string, shutdown chan os.Signal, deps *Deps) *Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
	}
	s := &Server{
		address:  address,
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.Sessions),
		errors:   make(chan error, 1),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	v1.GET("/health", s.health)

	jwt := middleware.JWTWithConfig(s.auth.jwtConfig("header:" + echo.HeaderAuthorization))
	authed := []echo.MiddlewareFunc{jwt, sessionMiddleware(s.deps.Sessions)}

	registerAuthAPI(v1, authed, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerRoomAPI(v1, authed, s.deps.HostelSvc, s.deps.Validate)
	registerStudentAPI(v1, authed, s.deps.HostelSvc, s.deps.UserSvc, s.deps.Sessions, s.deps.Validate)
	registerGrievanceAPI(v1, authed, s.deps.HostelSvc, s.deps.Validate)
	registerNoticeAPI(v1, authed, s.deps.HostelSvc, s.deps.Validate)
	registerLeaveAPI(v1, authed, s.deps.HostelSvc, s.deps.Validate)
	registerDashboardAPI(v1, authed, s.deps.HostelSvc)

	// browsers cannot set headers on websocket requests
	feedJWT := middleware.JWTWithConfig(s.auth.jwtConfig("query:token"))
	registerFeedAPI(v1, []echo.MiddlewareFunc{feedJWT, sessionMiddleware(s.deps.Sessions)}, s.deps.HostelSvc, s.deps.Feed, s.deps.Logger)
}

// Start listens until the server is shut down. Listening errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// Shutdown ends every session, which closes the live feeds, then stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Sessions.Close()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.deps.Sessions.Close()
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// IssueToken opens a session for the user and returns its signed token.
func (s *Server) IssueToken(usr user.User) (string, error) {
	return s.auth.issue(usr)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) health(ctx echo.Context) error {
	status := echo.Map{"status": "ok", "build": s.deps.Conf.Build}
	if s.deps.Health != nil {
		if err := s.deps.Health(ctx.Request().Context()); err != nil {
			s.deps.Logger.Warn("health check failed", err)
			status["status"] = "store unavailable"
			return ctx.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return ctx.JSON(http.StatusOK, status)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Hostel API!")
}
