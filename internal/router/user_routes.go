package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/handler"
	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// RegisterUser registers the player endpoints.
func RegisterUser(e *echo.Echo, g Guards, l *handler.ListingHandler, a *handler.AuthHandler) {
	grp := e.Group("/v1", g.required(), middleware.RequireRole(model.RoleUser))
	grp.GET("/reservations", l.Reservations)
	grp.GET("/me/qr", a.MyQR)
}
