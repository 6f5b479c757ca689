package utils // package utils provides token helpers shared by the session layer and middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// SessionToken is the signed cookie value handed to browsers.  It carries
// only the session id and role; tokens issued by the backend never leave the
// server.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// ErrInvalidSessionToken is returned for any cookie that fails verification.
var ErrInvalidSessionToken = errors.New("invalid session token")

// NewSessionToken builds and signs an HS256 JWT for a session.  The claims
// are sub (session id), role, exp and iat.
func NewSessionToken(secret, sessionID string, role model.Role, ttl time.Duration) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  sessionID,
		"role": string(role),
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies a cookie value and returns its session id and role.
func ParseSessionToken(secret, raw string) (string, model.Role, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSessionToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", "", ErrInvalidSessionToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidSessionToken
	}
	sid, _ := claims["sub"].(string)
	roleStr, _ := claims["role"].(string)
	role, ok := model.ParseRole(roleStr)
	if sid == "" || !ok {
		return "", "", ErrInvalidSessionToken
	}
	return sid, role, nil
}

// ProfileFromAccessToken reads the user profile the backend embeds in its
// access tokens.  The signature is not checked: the BFF does not hold the
// backend's key and only uses the claims for display.  The token's expiry is
// returned alongside (zero when absent).
func ProfileFromAccessToken(access string, role model.Role) (*model.User, time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode access token: %w", err)
	}
	u := &model.User{
		ID:       claimInt(claims["user_id"]),
		Phone:    claimString(claims["phone"]),
		Nickname: claimString(claims["nickname"]),
		Email:    claimString(claims["email"]),
		Username: claimString(claims["username"]),
		Role:     claimString(claims["role"]),
	}
	if b, ok := claims["is_store_owner"].(bool); ok {
		u.IsStoreOwner = b
	}
	if u.Role == "" {
		u.Role = role.BackendRole()
	}
	var exp time.Time
	if e, err := claims.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}
	return u, exp, nil
}

func claimString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// claimInt accepts numeric claims encoded either as JSON numbers or strings.
func claimInt(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		var n int64
		if _, err := fmt.Sscan(t, &n); err == nil {
			return n
		}
	}
	return 0
}
