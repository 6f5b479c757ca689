package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/registration"
	"github.com/iliyamo/asl-holdem-bff/internal/scanner"
)

const (
	maxFrames     = 8
	maxFrameBytes = 4 << 20
)

// RegistrationHandler exposes the per-session registration desk.  Every
// response carries the workflow snapshot.
type RegistrationHandler struct {
	Desks *registration.Registry
	Log   *zap.Logger
}

func (h *RegistrationHandler) desk(c echo.Context) *registration.Workflow {
	return h.Desks.Get(middleware.SessionID(c))
}

// Snapshot returns the current state, which is how clients observe the
// outcome of a debounced phone search.
func (h *RegistrationHandler) Snapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, h.desk(c).Snapshot())
}

func (h *RegistrationHandler) Phone(c echo.Context) error {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return c.JSON(http.StatusAccepted, h.desk(c).PhoneChanged(req.Phone))
}

func (h *RegistrationHandler) Tournament(c echo.Context) error {
	var req struct {
		TournamentID int64 `json:"tournament_id"`
		BuyIn        int   `json:"buy_in"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TournamentID < 0 || req.BuyIn < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tournament_id and buy_in cannot be negative"})
	}
	snap, err := h.desk(c).SelectTournament(c.Request().Context(), req.TournamentID, req.BuyIn)
	if err != nil {
		return h.fail(c, snap, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *RegistrationHandler) Fields(c echo.Context) error {
	var f registration.Fields
	if err := c.Bind(&f); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return c.JSON(http.StatusOK, h.desk(c).UpdateFields(f))
}

func (h *RegistrationHandler) Submit(c echo.Context) error {
	snap, err := h.desk(c).Submit(c.Request().Context())
	if err != nil {
		return h.fail(c, snap, err)
	}
	return c.JSON(http.StatusCreated, snap)
}

// QR accepts either a decoded payload (field "payload") or up to eight
// camera frames as multipart files named "frames".  Frames are scanned in
// order and the first QR code found is registered.
func (h *RegistrationHandler) QR(c echo.Context) error {
	ctx := c.Request().Context()
	payload, err := h.qrPayload(c)
	switch {
	case errors.Is(err, scanner.ErrNoCode):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "no QR code found in the uploaded frames"})
	case errors.Is(err, scanner.ErrNoDevice):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "send a payload or at least one frame"})
	case err != nil:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	snap, err := h.desk(c).QRDecoded(ctx, payload)
	if err != nil {
		return h.fail(c, snap, err)
	}
	return c.JSON(http.StatusCreated, snap)
}

func (h *RegistrationHandler) qrPayload(c echo.Context) (string, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		var req struct {
			Payload string `json:"payload" form:"payload"`
		}
		if err := c.Bind(&req); err != nil {
			return "", errors.New("invalid body")
		}
		if strings.TrimSpace(req.Payload) == "" {
			return "", scanner.ErrNoDevice
		}
		return req.Payload, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return "", errors.New("invalid multipart form")
	}
	if p := strings.TrimSpace(firstValue(form.Value["payload"])); p != "" {
		return p, nil
	}
	files := form.File["frames"]
	if len(files) > maxFrames {
		return "", errors.New("too many frames")
	}
	readers := make([]io.Reader, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return "", errors.New("unreadable frame")
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		readers = append(readers, f)
	}
	cam, err := scanner.ReadFrames(readers, maxFrameBytes)
	if err != nil {
		return "", err
	}

	var payload string
	sc := scanner.New(cam, nil, h.Log)
	err = sc.Scan(c.Request().Context(), firstValue(form.Value["device"]), func(p string) { payload = p })
	return payload, err
}

func firstValue(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// fail renders a workflow error together with the snapshot it left behind.
func (h *RegistrationHandler) fail(c echo.Context, snap registration.Snapshot, err error) error {
	var verr *registration.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Fields[0].Message, "fields": verr.Fields, "snapshot": snap})
	case errors.Is(err, registration.ErrBusy), errors.Is(err, registration.ErrSuperseded):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "snapshot": snap})
	case errors.Is(err, registration.ErrNoTournament), errors.Is(err, registration.ErrNoPlayer):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "snapshot": snap})
	case errors.Is(err, scanner.ErrBadPayload):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "QR code not recognised", "snapshot": snap})
	case errors.Is(err, registration.ErrClosed):
		return renderError(c, errNoSession)
	}
	return renderError(c, err)
}
