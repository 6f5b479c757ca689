package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/asl-holdem-bff/internal/apiclient"
	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/registration"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

// Messages shown to clients for each error class.
const (
	msgForbidden = "you do not have permission to view this page"
	msgNotFound  = "no data"
	msgNetwork   = "could not reach the server, check your connection and retry"
	msgServer    = "the server could not complete the request, please retry"
)

// renderError maps an error to the response the clients expect.  Only the
// single 401 refresh inside apiclient is automatic; every other failure is
// surfaced with a hint whether a manual retry makes sense.
func renderError(c echo.Context, err error) error {
	var verr *registration.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Fields[0].Message, "fields": verr.Fields})
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case apiclient.KindValidation:
			body := echo.Map{"error": apiErr.Message}
			if fields := objectPayload(apiErr.Payload); fields != nil {
				body["fields"] = fields
			}
			return c.JSON(http.StatusBadRequest, body)
		case apiclient.KindUnauthenticated:
			middleware.ClearSessionCookie(c)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": apiErr.Message})
		case apiclient.KindForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": msgForbidden})
		case apiclient.KindNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": msgNotFound})
		case apiclient.KindNetwork:
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msgNetwork, "retry": true})
		default:
			return c.JSON(http.StatusBadGateway, echo.Map{"error": msgServer, "retry": true})
		}
	}
	switch {
	case errors.Is(err, session.ErrNotFound):
		middleware.ClearSessionCookie(c)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired, please log in again"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msgNetwork, "retry": true})
	}
	middleware.Logger(c).Error("unhandled error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// objectPayload returns a JSON object payload as-is, or nil.
func objectPayload(p json.RawMessage) json.RawMessage {
	var m map[string]json.RawMessage
	if len(p) == 0 || json.Unmarshal(p, &m) != nil {
		return nil
	}
	return p
}
