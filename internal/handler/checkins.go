package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/repository"
)

// Journal is the read side of the check-in journal.
type Journal interface {
	ListRecent(ctx context.Context, tournamentID int64, limit int) ([]repository.Checkin, error)
}

type CheckinHandler struct {
	Journal Journal     // nil when no database is configured
	Log     *zap.Logger // falls back to the request logger
}

func (h *CheckinHandler) List(c echo.Context) error {
	if h.Journal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "check-in journal is not configured"})
	}
	tid, _ := strconv.ParseInt(c.QueryParam("tournament_id"), 10, 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	list, err := h.Journal.ListRecent(c.Request().Context(), tid, limit)
	if err != nil {
		log := h.Log
		if log == nil {
			log = middleware.Logger(c)
		}
		log.Error("list checkins", zap.Int64("tournament_id", tid), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not read the check-in journal"})
	}
	if list == nil {
		list = []repository.Checkin{}
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(list), "results": list})
}
