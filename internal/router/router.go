package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/handler"
	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

// Guards bundles the middleware shared by the route groups.
type Guards struct {
	Secret    string
	Sessions  *session.Service
	RateLimit echo.MiddlewareFunc // login throttle
	Cache     echo.MiddlewareFunc // public listing cache
}

func (g Guards) optional() echo.MiddlewareFunc { return middleware.SessionAuth(g.Secret, g.Sessions, false) }
func (g Guards) required() echo.MiddlewareFunc { return middleware.SessionAuth(g.Secret, g.Sessions, true) }

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}

// RegisterRoutes registers the probes.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready.Ready)
}

// RegisterAuth registers login, logout and the session-wide endpoints every
// role can reach.
func RegisterAuth(e *echo.Echo, g Guards, a *handler.AuthHandler, d *handler.DashboardHandler) {
	auth := e.Group("/v1/auth")
	auth.POST("/login", a.Login, orPass(g.RateLimit))
	auth.POST("/signup", a.Signup)
	auth.GET("/check-username", a.CheckUsername)
	// logout works with a stale or missing session as well
	auth.POST("/logout", a.Logout, g.optional())

	s := e.Group("/v1", g.required())
	s.GET("/me", a.Me)
	s.GET("/dashboard", d.Dashboard)
}

// RegisterPublic registers the browse endpoints.  A session is optional;
// anonymous responses go through the Redis cache.
func RegisterPublic(e *echo.Echo, g Guards, l *handler.ListingHandler) {
	p := e.Group("/v1", g.optional(), orPass(g.Cache))
	p.GET("/tournaments", l.Tournaments)
	p.GET("/stores", l.Stores)
	p.GET("/notices", l.Notices)
}
