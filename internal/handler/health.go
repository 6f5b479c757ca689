package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health is the liveness probe.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// ReadyHandler reports which optional backends are wired.
type ReadyHandler struct {
	Redis          *redis.Client
	JournalEnabled bool
	QueueEnabled   bool
}

func (h *ReadyHandler) Ready(c echo.Context) error {
	redisState := "disabled"
	if h.Redis != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		defer cancel()
		redisState = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			redisState = "down"
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"redis":   redisState,
		"journal": h.JournalEnabled,
		"queue":   h.QueueEnabled,
	})
}
