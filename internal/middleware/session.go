package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/session"
	"github.com/iliyamo/asl-holdem-bff/internal/utils"
)

// SessionCookie carries the signed session token.
const SessionCookie = "asl_session"

// Context keys set by SessionAuth.
const (
	ctxSessionID = "session_id"
	ctxRole      = "role"
	ctxSession   = "session"
)

// SessionAuth resolves the session token from the asl_session cookie or a
// Bearer header (mobile clients) and loads the session record.  With
// required=false a missing or stale session lets the request through
// anonymously; with required=true it answers 401 and clears the cookie.
func SessionAuth(secret string, svc *session.Service, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFrom(c)
			if raw == "" {
				if required {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login required"})
				}
				return next(c)
			}
			sid, role, err := utils.ParseSessionToken(secret, raw)
			if err != nil {
				return reject(c, next, required, "invalid session")
			}
			sess, err := svc.Get(c.Request().Context(), sid)
			if errors.Is(err, session.ErrNotFound) || (err == nil && !sess.Authenticated()) {
				return reject(c, next, required, "session expired, please log in again")
			}
			if err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "session store unavailable", "retry": true})
			}
			c.Set(ctxSessionID, sid)
			c.Set(ctxRole, string(role))
			c.Set(ctxSession, sess)
			return next(c)
		}
	}
}

func tokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func reject(c echo.Context, next echo.HandlerFunc, required bool, msg string) error {
	ClearSessionCookie(c)
	if !required {
		return next(c)
	}
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
}

// SetSessionCookie writes the session token cookie.
func SetSessionCookie(c echo.Context, tok utils.SessionToken, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Exp,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
}
