package handler

import (
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/registration"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

var mobilePhone = regexp.MustCompile(`^01\d{8,9}$`)

const minPasswordLen = 8

type signupReq struct {
	model.Signup
	PasswordConfirm string `json:"password_confirm"`
}

func validateSignup(r signupReq) []registration.FieldError {
	var errs []registration.FieldError
	add := func(field, msg string) { errs = append(errs, registration.FieldError{Field: field, Message: msg}) }

	if r.Username == "" {
		add("username", "username is required")
	}
	if r.Email == "" {
		add("email", "email is required")
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		add("email", "email address is not valid")
	}
	switch {
	case r.Password == "":
		add("password", "password is required")
	case len(r.Password) < minPasswordLen:
		add("password", "password must be at least 8 characters")
	case r.PasswordConfirm != "" && r.PasswordConfirm != r.Password:
		add("password_confirm", "passwords do not match")
	}
	if r.Phone == "" {
		add("phone", "phone number is required")
	} else if !mobilePhone.MatchString(session.NormalizePhone(r.Phone)) {
		add("phone", "phone number must look like 010-1234-5678")
	}
	return errs
}

// Signup creates a player account.  The form is checked locally first, the
// username is checked for availability, then the backend creates the
// account.  The caller logs in afterwards.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Nickname = strings.TrimSpace(req.Nickname)
	if errs := validateSignup(req); len(errs) > 0 {
		return renderError(c, &registration.ValidationError{Fields: errs})
	}

	ctx := c.Request().Context()
	api := h.Sessions.Public()
	free, err := api.UsernameAvailable(ctx, req.Username)
	if err != nil {
		return renderError(c, err)
	}
	if !free {
		return renderError(c, &registration.ValidationError{Fields: []registration.FieldError{
			{Field: "username", Message: "username is already taken"},
		}})
	}
	u, err := api.Signup(ctx, req.Signup)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": u})
}

// CheckUsername reports whether ?username= is still free.
func (h *AuthHandler) CheckUsername(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("username"))
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username is required"})
	}
	free, err := h.Sessions.Public().UsernameAvailable(c.Request().Context(), name)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"username": name, "is_available": free})
}
