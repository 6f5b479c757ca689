package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

// StoreHandler reads and edits the logged-in manager's store profile.
type StoreHandler struct {
	Sessions *session.Service
}

func (h *StoreHandler) GetInfo(c echo.Context) error {
	p, err := h.Sessions.Client(middleware.SessionID(c)).StoreInfo(c.Request().Context())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateInfo saves the profile and answers with the record as re-read from
// the backend, so the client shows what was actually stored.
func (h *StoreHandler) UpdateInfo(c echo.Context) error {
	var p model.StoreProfile
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "store name is required", "fields": echo.Map{"name": "required"}})
	}
	if p.MaxCapacity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_capacity cannot be negative", "fields": echo.Map{"max_capacity": "must be >= 0"}})
	}

	ctx := c.Request().Context()
	api := h.Sessions.Client(middleware.SessionID(c))
	if err := api.UpdateStoreInfo(ctx, p); err != nil {
		return renderError(c, err)
	}
	saved, err := api.StoreInfo(ctx)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}
