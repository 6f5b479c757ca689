package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/apiclient"
	"github.com/iliyamo/asl-holdem-bff/internal/config"
	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/scanner"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
	"github.com/iliyamo/asl-holdem-bff/internal/utils"
)

var mobileUA = regexp.MustCompile(`(?i)iPhone|iPad|iPod|Android`)

// AuthHandler opens and closes sessions.
type AuthHandler struct {
	Cfg      config.Config
	Sessions *session.Service
}

func NewAuthHandler(cfg config.Config, s *session.Service) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Sessions: s}
}

type loginReq struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

type loginResp struct {
	User     *model.User `json:"user"`
	UserType model.Role  `json:"user_type"`
	Token    string      `json:"token"` // same value as the cookie, for clients without cookies
	Expires  time.Time   `json:"expires"`
}

// Login exchanges phone, password and user type for a session.  Backend
// rejections are relayed with their original payload.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	role, ok := model.ParseRole(req.UserType)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_type must be admin, store or user"})
	}
	if role == model.RoleAdmin && mobileUA.MatchString(c.Request().UserAgent()) {
		return c.JSON(http.StatusForbidden, echo.Map{"detail": "admin login is not available on mobile devices"})
	}

	sess, err := h.Sessions.Login(c.Request().Context(), req.Phone, req.Password, role)
	if errors.Is(err, session.ErrMissingCredentials) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && (apiErr.Kind == apiclient.KindUnauthenticated || apiErr.Kind == apiclient.KindValidation) {
		status := http.StatusUnauthorized
		if apiErr.Kind == apiclient.KindValidation {
			status = http.StatusBadRequest
		}
		if json.Valid(apiErr.Payload) {
			return c.JSONBlob(status, apiErr.Payload)
		}
		return c.JSON(status, echo.Map{"detail": apiErr.Message})
	}
	if err != nil {
		return renderError(c, err)
	}

	tok, err := utils.NewSessionToken(h.Cfg.SessionSecret, sess.ID, role, h.Cfg.SessionTTL)
	if err != nil {
		_ = h.Sessions.Logout(c.Request().Context(), sess.ID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token issue failed"})
	}
	middleware.SetSessionCookie(c, tok, h.Cfg.CookieSecure)
	return c.JSON(http.StatusOK, loginResp{User: sess.User, UserType: role, Token: tok.Token, Expires: tok.Exp})
}

// Logout destroys the session and clears the cookie.  It succeeds without a
// session as well.
func (h *AuthHandler) Logout(c echo.Context) error {
	if sid := middleware.SessionID(c); sid != "" {
		if err := h.Sessions.Logout(c.Request().Context(), sid); err != nil {
			return renderError(c, err)
		}
	}
	middleware.ClearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me returns the cached profile of the current session.
func (h *AuthHandler) Me(c echo.Context) error {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		return renderError(c, session.ErrNotFound)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":       sess.User,
		"user_type":  sess.UserType,
		"created_at": sess.CreatedAt,
	})
}

// MyQR renders the check-in QR code of a player account as a PNG.  Stores
// scan it at the registration desk; the backend resolves the identity.
func (h *AuthHandler) MyQR(c echo.Context) error {
	sess := middleware.CurrentSession(c)
	if sess == nil || sess.User == nil || sess.User.ID == 0 {
		return renderError(c, session.ErrNotFound)
	}
	payload, err := json.Marshal(struct {
		ID       int64  `json:"id"`
		Phone    string `json:"phone"`
		Nickname string `json:"nickname,omitempty"`
	}{sess.User.ID, sess.User.Phone, sess.User.Nickname})
	if err != nil {
		return renderError(c, err)
	}
	size := 256
	if s, err := strconv.Atoi(c.QueryParam("size")); err == nil && s >= 128 && s <= 1024 {
		size = s
	}
	img, err := scanner.Encode(string(payload), size)
	if err != nil {
		return renderError(c, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return renderError(c, err)
	}
	c.Response().Header().Set("Cache-Control", "private, no-store")
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}
