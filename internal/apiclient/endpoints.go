package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// TokenPair is what the role login endpoints return.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type loginReq struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token pair at /accounts/token/{role}/.
func (c *Client) Login(ctx context.Context, role model.Role, phone, password string) (TokenPair, error) {
	var out TokenPair
	err := c.Post(ctx, "/accounts/token/"+string(role)+"/", loginReq{Phone: phone, Password: password}, &out)
	return out, err
}

// GetUser looks up a profile by phone.
func (c *Client) GetUser(ctx context.Context, phone string) (*model.User, error) {
	var out model.User
	if err := c.Post(ctx, "/accounts/users/get_user/", map[string]string{"phone": phone}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchUser resolves a phone number to an existing user.  found=false means
// the phone is not registered yet.
func (c *Client) SearchUser(ctx context.Context, phone string) (*model.User, bool, error) {
	var out model.UserSearchResult
	err := c.Get(ctx, "/store/search-user/", url.Values{"phone": {phone}}, &out)
	if IsKind(err, KindNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !out.Found || out.User == nil {
		return nil, false, nil
	}
	return out.User, true, nil
}

// UserTickets returns a user's SEAT ticket balance for one tournament.
func (c *Client) UserTickets(ctx context.Context, userID, tournamentID int64) (*model.TicketBalance, error) {
	var out model.TicketBalance
	q := url.Values{"user_id": {itoa(userID)}, "tournament_id": {itoa(tournamentID)}}
	if err := c.Get(ctx, "/store/user-tickets/", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GrantTicket issues SEAT tickets to a user.
func (c *Client) GrantTicket(ctx context.Context, g model.TicketGrant) (*model.TicketBalance, error) {
	var out model.TicketBalance
	if err := c.Post(ctx, "/store/grant-ticket/", g, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterPlayer enters a player into a tournament.  A 2xx answer carrying
// success=false is turned into a validation error.
func (c *Client) RegisterPlayer(ctx context.Context, r model.RegistrationRequest) (*model.RegistrationResult, error) {
	var out model.RegistrationResult
	if err := c.Post(ctx, "/store/register-player/", r, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "registration rejected"
		}
		return &out, &Error{Kind: KindValidation, Status: 200, Message: msg}
	}
	return &out, nil
}

// ScanQRCode resolves a scanned QR payload to the user it identifies.  The
// backend answers either {"user": {...}} or the bare user object.
func (c *Client) ScanQRCode(ctx context.Context, payload string) (*model.User, error) {
	var raw json.RawMessage
	if err := c.Post(ctx, "/user/scan-qr-code/", map[string]string{"qr_data": payload}, &raw); err != nil {
		return nil, err
	}
	var wrapped struct {
		User *model.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil && wrapped.User.ID != 0 {
		return wrapped.User, nil
	}
	var flat model.User
	if err := json.Unmarshal(raw, &flat); err != nil || flat.ID == 0 {
		return nil, &Error{Kind: KindNotFound, Status: 404, Message: "no user for this QR code", Payload: raw}
	}
	return &flat, nil
}

// Tournaments lists every tournament.
func (c *Client) Tournaments(ctx context.Context, status string) ([]model.Tournament, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {status}}
	}
	return getList[model.Tournament](ctx, c, "/tournaments/", q)
}

// AllTournamentInfo lists tournaments with participant counts.
func (c *Client) AllTournamentInfo(ctx context.Context) ([]model.Tournament, error) {
	return getList[model.Tournament](ctx, c, "/tournaments/all_info/", nil)
}

// StoreTournaments lists the tournaments assigned to the logged-in manager's store.
func (c *Client) StoreTournaments(ctx context.Context) ([]model.Tournament, error) {
	return getList[model.Tournament](ctx, c, "/store/tournaments/", nil)
}

// PlayerMapping lists the registered players of a tournament.
func (c *Client) PlayerMapping(ctx context.Context, tournamentID int64) (*model.PlayerMapping, error) {
	var out model.PlayerMapping
	q := url.Values{"tournament_id": {itoa(tournamentID)}}
	if err := c.Get(ctx, "/tournaments/dashboard/player_mapping/", q, &out); err != nil {
		return nil, err
	}
	if out.TournamentID == 0 {
		out.TournamentID = tournamentID
	}
	return &out, nil
}

// DashboardStats returns the admin dashboard counters.
func (c *Client) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var out model.DashboardStats
	if err := c.Get(ctx, "/tournaments/dashboard/stats-simple/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stores lists venues, optionally narrowed by the backend's search parameter.
func (c *Client) Stores(ctx context.Context, search string) ([]model.Store, error) {
	var q url.Values
	if search != "" {
		q = url.Values{"search": {search}}
	}
	return getList[model.Store](ctx, c, "/stores/", q)
}

// StoreInfo returns the manager's own store profile.
func (c *Client) StoreInfo(ctx context.Context) (*model.StoreProfile, error) {
	var out model.StoreProfile
	if err := c.Get(ctx, "/store/info/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStoreInfo commits an edited store profile.
func (c *Client) UpdateStoreInfo(ctx context.Context, p model.StoreProfile) error {
	return c.Put(ctx, "/store/info/", p, nil)
}

// UserTicketStats returns a user's ticket holdings across tournaments.
func (c *Client) UserTicketStats(ctx context.Context, userID int64) (*model.TicketStats, error) {
	var out model.TicketStats
	if err := c.Get(ctx, "/seats/tickets/user_stats/", url.Values{"user_id": {itoa(userID)}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup creates a player account.  Field-level rejections come back as a
// KindValidation error carrying the backend's per-field payload.
func (c *Client) Signup(ctx context.Context, s model.Signup) (*model.User, error) {
	var out model.User
	if err := c.Post(ctx, "/accounts/users/", s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UsernameAvailable asks whether a username is still free.
func (c *Client) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var out struct {
		IsAvailable bool `json:"is_available"`
	}
	if err := c.Get(ctx, "/accounts/users/check_username/", url.Values{"username": {username}}, &out); err != nil {
		return false, err
	}
	return out.IsAvailable, nil
}

// Notices lists the published notices the caller's token may read.
func (c *Client) Notices(ctx context.Context) ([]model.Notice, error) {
	return getList[model.Notice](ctx, c, "/notices/", nil)
}

// getList accepts both a bare JSON array and a paginated {"results": [...]}.
func getList[T any](ctx context.Context, c *Client, path string, q url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, q, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	var items []T
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &Error{Kind: KindServer, Message: "malformed list", Payload: raw, Err: err}
		}
		return items, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &Error{Kind: KindServer, Message: fmt.Sprintf("malformed list from %s", path), Payload: raw, Err: err}
	}
	if page.Results == nil {
		return []T{}, nil
	}
	return page.Results, nil
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
