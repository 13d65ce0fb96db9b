package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/session"
	"github.com/trezcool/hostel/core/user"
)

// sessionMiddleware resolves the session named by the token. A token whose session
// was closed (logout, expiry, account removal) is rejected even if its signature is valid.
func sessionMiddleware(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			sess, err := sessions.Get(claims.Id)
			if err != nil {
				return errSessionExpired
			}
			ctx.Set(contextSessionKey, sess)
			return next(ctx)
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			if id.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func studentMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			if id.IsStudent() && id.StudentID != "" {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// ownerOrAdminMiddleware authorizes action on the student record named by the `id` param.
func ownerOrAdminMiddleware(action user.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			if err := id.Authorize(action, ctx.Param("id")); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
