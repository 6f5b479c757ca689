package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies a failed backend call into the categories the handlers
// render differently.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindNetwork         Kind = "network"
	KindServer          Kind = "server"
	KindOther           Kind = "other"
)

// ErrSessionExpired is wrapped by the error returned when a 401 could not be
// recovered by refreshing the access token.  The session has been cleared by
// the time the caller sees it.
var ErrSessionExpired = errors.New("session expired")

// Error is returned for every failed backend call.  Payload holds the raw
// response body so callers that must surface the server's answer verbatim
// (login) can do so.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Payload json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("backend %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, KindOther for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindOther
}

// IsKind reports whether err is a backend error of kind k.
func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }

func classify(status int) Kind {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return KindValidation
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	}
	return KindOther
}

// messageFrom digs the human-readable message out of a DRF style error body:
// {"error": ...}, {"detail": ...}, {"non_field_errors": [...]} or a field map.
func messageFrom(body []byte, status int) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err == nil && len(m) > 0 {
		for _, k := range []string{"error", "detail", "message"} {
			if s, ok := m[k].(string); ok && s != "" {
				return s
			}
		}
		if s := firstString(m["non_field_errors"]); s != "" {
			return s
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := firstString(m[k]); s != "" {
				return k + ": " + s
			}
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) <= 200 && !strings.HasPrefix(s, "<") {
		return s
	}
	if t := http.StatusText(status); t != "" {
		return strings.ToLower(t)
	}
	return "request failed"
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
