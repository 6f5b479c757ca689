package middleware

// identity.go holds accessors for what SessionAuth stored in the echo
// context.  Anonymous requests get empty values.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

// SessionID returns the current session id or "".
func SessionID(c echo.Context) string {
	s, _ := c.Get(ctxSessionID).(string)
	return s
}

// CurrentRole returns the role the session was opened with.
func CurrentRole(c echo.Context) model.Role {
	s, _ := c.Get(ctxRole).(string)
	return model.Role(s)
}

// CurrentSession returns the loaded session record or nil.
func CurrentSession(c echo.Context) *session.Session {
	s, _ := c.Get(ctxSession).(*session.Session)
	return s
}
