package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/registration"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

const maxGrant = 100

// TicketHandler issues and reads SEAT tickets.
type TicketHandler struct {
	Sessions *session.Service
	Desks    *registration.Registry
}

type grantReq struct {
	UserID       int64  `json:"user_id"`
	TournamentID int64  `json:"tournament_id"`
	Quantity     int    `json:"quantity"`
	Memo         string `json:"memo"`
}

// Grant issues tickets.  Without user_id the grant goes to the player
// currently found at the session's registration desk, for its selected
// tournament, and the answer is the desk snapshot.
func (h *TicketHandler) Grant(c echo.Context) error {
	var req grantReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Quantity < 1 || req.Quantity > maxGrant {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be between 1 and 100", "fields": echo.Map{"quantity": "1-100"}})
	}
	req.Memo = strings.TrimSpace(req.Memo)
	ctx := c.Request().Context()
	sid := middleware.SessionID(c)

	if req.UserID == 0 {
		rh := RegistrationHandler{Desks: h.Desks}
		snap, err := h.Desks.Get(sid).GrantTickets(ctx, req.Quantity, req.Memo)
		if err != nil {
			return rh.fail(c, snap, err)
		}
		return c.JSON(http.StatusCreated, snap)
	}
	if req.TournamentID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tournament_id is required"})
	}
	bal, err := h.Sessions.Client(sid).GrantTicket(ctx, model.TicketGrant{
		UserID: req.UserID, TournamentID: req.TournamentID, Quantity: req.Quantity, Memo: req.Memo,
	})
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusCreated, bal)
}

// Balance returns one user's tickets for one tournament.
func (h *TicketHandler) Balance(c echo.Context) error {
	userID, err1 := strconv.ParseInt(c.QueryParam("user_id"), 10, 64)
	tid, err2 := strconv.ParseInt(c.QueryParam("tournament_id"), 10, 64)
	if err1 != nil || err2 != nil || userID <= 0 || tid <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id and tournament_id are required"})
	}
	bal, err := h.Sessions.Client(middleware.SessionID(c)).UserTickets(c.Request().Context(), userID, tid)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, bal)
}
