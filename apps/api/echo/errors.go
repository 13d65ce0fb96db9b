package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/session"
	"github.com/trezcool/hostel/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errSessionExpired     = echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errStoreUnavailable   = echo.NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable")
)

// domainErrorCodes maps the domain sentinel errors to their HTTP status.
var domainErrorCodes = map[error]int{
	hostel.ErrRoomNotFound:         http.StatusNotFound,
	hostel.ErrStudentNotFound:      http.StatusNotFound,
	hostel.ErrGrievanceNotFound:    http.StatusNotFound,
	hostel.ErrNoticeNotFound:       http.StatusNotFound,
	hostel.ErrLeaveRequestNotFound: http.StatusNotFound,
	user.ErrNotFound:               http.StatusNotFound,

	hostel.ErrCapacityExceeded: http.StatusConflict,
	hostel.ErrAlreadyAllocated: http.StatusConflict,

	user.ErrInvalidCredentials:   http.StatusBadRequest,
	user.ErrNoPriorRecord:        http.StatusBadRequest,
	user.ErrVerificationMismatch: http.StatusBadRequest,
	user.ErrEmailRegistered:      http.StatusBadRequest,
	user.ErrAccountDeactivated:   http.StatusForbidden,
	user.ErrRoleMismatch:         http.StatusForbidden,
	user.ErrPermissionDenied:     http.StatusForbidden,

	session.ErrNotFound: http.StatusUnauthorized,
	session.ErrClosed:   http.StatusUnauthorized,
}

// domainErrorCode returns the status of a domain sentinel error.
// The map is scanned rather than indexed: errors such as validator.ValidationErrors are not hashable.
func domainErrorCode(err error) (int, bool) {
	for sentinel, code := range domainErrorCodes {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if c, ok := domainErrorCode(cause); ok {
			cause = echo.NewHTTPError(c, cause.Error())
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.StoreError:
			code = errStoreUnavailable.Code
			message = errStoreUnavailable.Message
			logger.Error(err.Error(), err, contextUser(ctx))
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logger.Error(msg, errors.Wrap(err, msg), contextUser(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// contextUser is the user an error is reported against.
func contextUser(ctx echo.Context) user.Identity {
	if id, err := getContextIdentity(ctx); err == nil {
		return id
	}
	var id user.Identity
	if claims, err := getContextClaims(ctx); err == nil {
		id.UserID = claims.Subject
		id.Email = claims.Email
		id.Role = claims.Role
	}
	return id
}
