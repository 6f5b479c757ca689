package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

// MenuCard is one entry of a role dashboard.
type MenuCard struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Path        string `json:"path"` // BFF endpoint backing the card
}

var menus = map[model.Role][]MenuCard{
	model.RoleAdmin: {
		{Key: "tournaments", Title: "Tournaments", Description: "All tournaments across stores", Path: "/v1/tournaments?category=all"},
		{Key: "stores", Title: "Stores", Description: "Search registered stores", Path: "/v1/stores"},
		{Key: "registration", Title: "Player registration", Description: "Register players by phone or QR", Path: "/v1/store/registration"},
		{Key: "tickets", Title: "SEAT tickets", Description: "Issue and inspect SEAT tickets", Path: "/v1/store/tickets"},
		{Key: "checkins", Title: "Check-in journal", Description: "Recent registrations", Path: "/v1/admin/checkins"},
		{Key: "notices", Title: "Notices", Description: "Announcements from ASL Hold'em", Path: "/v1/notices"},
	},
	model.RoleStore: {
		{Key: "tournaments", Title: "Tournaments", Description: "Tournaments distributed to this store", Path: "/v1/tournaments?category=store"},
		{Key: "store_info", Title: "Store info", Description: "Edit store profile and hours", Path: "/v1/store/info"},
		{Key: "registration", Title: "Player registration", Description: "Register players by phone or QR", Path: "/v1/store/registration"},
		{Key: "tickets", Title: "SEAT tickets", Description: "Issue SEAT tickets to players", Path: "/v1/store/tickets"},
		{Key: "notices", Title: "Notices", Description: "Announcements from ASL Hold'em", Path: "/v1/notices"},
	},
	model.RoleUser: {
		{Key: "tournaments", Title: "Tournaments", Description: "Upcoming and live tournaments", Path: "/v1/tournaments?filter=upcoming"},
		{Key: "reservations", Title: "My reservations", Description: "Your SEAT tickets by tournament", Path: "/v1/reservations?tab=upcoming"},
		{Key: "stores", Title: "Find stores", Description: "Search stores near you", Path: "/v1/stores"},
		{Key: "qr", Title: "My QR code", Description: "Show this at the store to check in", Path: "/v1/me/qr"},
		{Key: "notices", Title: "Notices", Description: "Announcements from ASL Hold'em", Path: "/v1/notices"},
	},
}

// dashboardNotices is how many notices the dashboard shows.
const dashboardNotices = 3

// DashboardHandler serves the role-scoped landing page.
type DashboardHandler struct {
	Sessions *session.Service
	Log      *zap.Logger
}

// Dashboard returns the menu for the session's role plus a best-effort
// summary block.  Summary failures never fail the dashboard.
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		return renderError(c, errNoSession)
	}
	role := middleware.CurrentRole(c)
	resp := echo.Map{
		"user_type": role,
		"user":      sess.User,
		"menu":      menus[role],
	}

	ctx := c.Request().Context()
	api := h.Sessions.Client(sess.ID)
	if list, err := api.Notices(ctx); err == nil {
		resp["notices"] = visibleNotices(list, role, dashboardNotices)
	} else {
		h.Log.Info("notices unavailable", zap.Error(err))
	}
	switch role {
	case model.RoleAdmin:
		if stats, err := api.DashboardStats(ctx); err == nil {
			resp["stats"] = stats
		} else {
			h.Log.Info("dashboard stats unavailable", zap.Error(err))
		}
	case model.RoleStore:
		if list, err := api.StoreTournaments(ctx); err == nil {
			resp["stats"] = echo.Map{"tournament_count": len(list)}
		} else {
			h.Log.Info("store tournaments unavailable", zap.Error(err))
		}
	case model.RoleUser:
		if sess.User != nil && sess.User.ID != 0 {
			if st, err := api.UserTicketStats(ctx, sess.User.ID); err == nil {
				resp["stats"] = st.Overall
			} else {
				h.Log.Info("ticket stats unavailable", zap.Error(err))
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}
