package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/handler"
	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// RegisterStore registers the store manager endpoints under /v1/store.
// Registration and tickets are open to admins too; the store profile is
// store only.
func RegisterStore(e *echo.Echo, g Guards, s *handler.StoreHandler, r *handler.RegistrationHandler, t *handler.TicketHandler) {
	grp := e.Group("/v1/store", g.required(), middleware.RequireRole(model.RoleStore, model.RoleAdmin))

	storeOnly := middleware.RequireRole(model.RoleStore)
	grp.GET("/info", s.GetInfo, storeOnly)
	grp.PUT("/info", s.UpdateInfo, storeOnly)

	grp.GET("/registration", r.Snapshot)
	grp.POST("/registration/phone", r.Phone)
	grp.POST("/registration/tournament", r.Tournament)
	grp.POST("/registration/fields", r.Fields)
	grp.POST("/registration/submit", r.Submit)
	grp.POST("/registration/qr", r.QR)

	grp.POST("/tickets", t.Grant)
	grp.GET("/tickets", t.Balance)
}
