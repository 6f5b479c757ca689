package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/handler"
	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// RegisterAdmin registers admin-only endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, g Guards, ch *handler.CheckinHandler) {
	grp := e.Group("/v1/admin", g.required(), middleware.RequireRole(model.RoleAdmin))
	grp.GET("/checkins", ch.List)
}
