package scanner

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var ErrBadPayload = errors.New("unrecognised QR payload")

// Payload is the identity a player's QR code carries.  Two encodings are in
// circulation: a JSON object {"id":42,"phone":"...","nickname":"..."} and the
// backend's own "user_id:42,uuid:<uuid>".
type Payload struct {
	UserID   int64  `json:"user_id"`
	Phone    string `json:"phone,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	UUID     string `json:"uuid,omitempty"`
	Raw      string `json:"-"`
}

// ParsePayload recognises both encodings.
func ParsePayload(raw string) (Payload, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Payload{}, ErrBadPayload
	}
	if strings.HasPrefix(s, "{") {
		return parseJSON(s, raw)
	}
	return parseKV(s, raw)
}

func parseJSON(s, raw string) (Payload, error) {
	var v struct {
		ID       json.Number `json:"id"`
		UserID   json.Number `json:"user_id"`
		Phone    string      `json:"phone"`
		Nickname string      `json:"nickname"`
		UUID     string      `json:"uuid"`
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return Payload{}, ErrBadPayload
	}
	idStr := v.ID.String()
	if idStr == "" {
		idStr = v.UserID.String()
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return Payload{}, ErrBadPayload
	}
	p := Payload{UserID: id, Phone: v.Phone, Nickname: v.Nickname, Raw: raw}
	if v.UUID != "" {
		u, err := uuid.Parse(v.UUID)
		if err != nil {
			return Payload{}, ErrBadPayload
		}
		p.UUID = u.String()
	}
	return p, nil
}

func parseKV(s, raw string) (Payload, error) {
	p := Payload{Raw: raw}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			return Payload{}, ErrBadPayload
		}
		switch strings.TrimSpace(k) {
		case "user_id":
			id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil || id <= 0 {
				return Payload{}, ErrBadPayload
			}
			p.UserID = id
		case "uuid":
			u, err := uuid.Parse(strings.TrimSpace(v))
			if err != nil {
				return Payload{}, ErrBadPayload
			}
			p.UUID = u.String()
		}
	}
	if p.UserID == 0 || p.UUID == "" {
		return Payload{}, ErrBadPayload
	}
	return p, nil
}
