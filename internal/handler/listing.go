package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/config"
	"github.com/iliyamo/asl-holdem-bff/internal/listing"
	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

var errNoSession = session.ErrNotFound

// ListingHandler serves tournament and store lists with the filters applied
// server-side.
type ListingHandler struct {
	Cfg      config.Config
	Sessions *session.Service
	Now      func() time.Time
}

func NewListingHandler(cfg config.Config, s *session.Service) *ListingHandler {
	return &ListingHandler{Cfg: cfg, Sessions: s, Now: time.Now}
}

func (h *ListingHandler) clock() listing.Clock {
	return listing.Clock{Now: h.Now(), Duration: h.Cfg.TournamentDuration, Location: h.Cfg.Location}
}

// Tournaments lists tournaments.  ?category=store reads the store's own
// distribution and needs a store or admin session; ?filter= and ?q= are
// applied after the fetch.
func (h *ListingHandler) Tournaments(c echo.Context) error {
	filter, err := listing.ParseFilter(c.QueryParam("filter"))
	if errors.Is(err, listing.ErrUnknownFilter) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "filter must be one of all, upcoming, ongoing, completed, today"})
	}
	ctx := c.Request().Context()
	_, needsSession := listing.EndpointFor(c.QueryParam("category"))

	var list []model.Tournament
	if needsSession {
		sid := middleware.SessionID(c)
		if sid == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login required"})
		}
		if r := middleware.CurrentRole(c); r != model.RoleStore && r != model.RoleAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": msgForbidden})
		}
		list, err = h.Sessions.Client(sid).StoreTournaments(ctx)
	} else {
		api := h.Sessions.Public()
		if sid := middleware.SessionID(c); sid != "" {
			api = h.Sessions.Client(sid)
		}
		list, err = api.Tournaments(ctx, "")
	}
	if err != nil {
		return renderError(c, err)
	}

	out := listing.Apply(list, listing.Query{Filter: filter, Search: c.QueryParam("q")}, h.clock())
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "results": out})
}

// Stores searches stores by name or address.
func (h *ListingHandler) Stores(c echo.Context) error {
	q := c.QueryParam("q")
	stores, err := h.Sessions.Public().Stores(c.Request().Context(), q)
	if err != nil {
		return renderError(c, err)
	}
	out := listing.RankStores(stores, q)
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "results": out})
}

// Reservations lists the user's tournaments with SEAT tickets, by tab.
func (h *ListingHandler) Reservations(c echo.Context) error {
	sess := middleware.CurrentSession(c)
	if sess == nil || sess.User == nil || sess.User.ID == 0 {
		return renderError(c, errNoSession)
	}
	tab := c.QueryParam("tab")
	if tab == "" {
		tab = listing.TabUpcoming
	}
	if tab != listing.TabUpcoming && tab != listing.TabPast {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tab must be upcoming or past"})
	}
	stats, err := h.Sessions.Client(sess.ID).UserTicketStats(c.Request().Context(), sess.User.ID)
	if err != nil {
		return renderError(c, err)
	}
	out := listing.Reservations(*stats, tab, h.clock())
	return c.JSON(http.StatusOK, echo.Map{"tab": tab, "overall": stats.Overall, "results": out})
}

// Notices lists the notice board for the caller's role, pinned and urgent
// notices first.  ?limit= trims the list.
func (h *ListingHandler) Notices(c echo.Context) error {
	api := h.Sessions.Public()
	if sid := middleware.SessionID(c); sid != "" {
		api = h.Sessions.Client(sid)
	}
	list, err := api.Notices(c.Request().Context())
	if err != nil {
		return renderError(c, err)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	out := visibleNotices(list, middleware.CurrentRole(c), limit)
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "results": out})
}

// visibleNotices filters by audience, sorts and keeps at most limit entries
// (all when limit <= 0).
func visibleNotices(list []model.Notice, role model.Role, limit int) []model.Notice {
	out := make([]model.Notice, 0, len(list))
	for _, n := range list {
		if n.VisibleTo(role) {
			out = append(out, n)
		}
	}
	model.SortNotices(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
