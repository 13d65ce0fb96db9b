package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/session"
	"github.com/trezcool/hostel/core/user"
)

const (
	tokenAudience     = "Hostel"
	contextTokenKey   = "userToken"
	contextSessionKey = "session"
)

var nowFunc = time.Now // mockable

// Claims represents the authorization claims transmitted via a JWT.
// The token ID (jti) is the ID of the session opened at login.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	StudentID    string `json:"student_id,omitempty"`
}

type authenticator struct {
	conf     *core.Config
	sessions *session.Manager
	key      []byte
}

func newAuthenticator(conf *core.Config, sessions *session.Manager) *authenticator {
	return &authenticator{conf: conf, sessions: sessions, key: []byte(conf.SecretKey)}
}

// jwtConfig returns the JWT auth middleware config reading the token from lookup.
func (a *authenticator) jwtConfig(lookup string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    a.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
		TokenLookup:   lookup,
	}
}

func (a *authenticator) claims(sess *session.Session, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	id := sess.Identity
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID,
			Issuer:    a.conf.AppName,
			Subject:   id.UserID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         id.Name,
		Email:        id.Email,
		Role:         id.Role,
		StudentID:    id.StudentID,
	}
}

// sign generates a signed JWT token string representing the Claims.
func (a *authenticator) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString(a.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// issue opens a session for the user and signs its token.
func (a *authenticator) issue(usr user.User) (string, error) {
	sess := a.sessions.Start(usr.Identity())
	token, err := a.sign(a.claims(sess))
	if err != nil {
		_ = a.sessions.End(sess.ID)
		return "", err
	}
	return token, nil
}

func (a *authenticator) refresh(ctx echo.Context, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	sess, err := getContextSession(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context session")
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return "", errors.Wrap(err, "finding user by ID")
	}

	// check if user is still active
	if !usr.IsActive {
		_ = a.sessions.End(sess.ID)
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if nowFunc().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := a.claims(sess, claims.OrigIssuedAt)
	if err := a.sessions.Extend(sess.ID, time.Unix(newClaims.ExpiresAt, 0)); err != nil {
		return "", errors.Wrap(err, "extending session")
	}
	token, err := a.sign(newClaims)
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextSession(ctx echo.Context) (*session.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(*session.Session); ok {
		return sess, nil
	}
	return nil, errUnauthorized
}

func getContextIdentity(ctx echo.Context) (user.Identity, error) {
	sess, err := getContextSession(ctx)
	if err != nil {
		return user.Identity{}, err
	}
	return sess.Identity, nil
}
