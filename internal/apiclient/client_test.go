package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

type memTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	cleared int
}

func (m *memTokens) AccessToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, nil
}

func (m *memTokens) RefreshToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh, nil
}

func (m *memTokens) UpdateTokens(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = access
	if refresh != "" {
		m.refresh = refresh
	}
	return nil
}

func (m *memTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = "", ""
	m.cleared++
	return nil
}

func newClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Logger: zaptest.NewLogger(t)})
}

func TestRefreshOnceThenRetry(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		var body refreshReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "r-1", body.Refresh)
		_ = json.NewEncoder(w).Encode(refreshResp{Access: "fresh"})
	})
	mux.HandleFunc("/stores/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"name":"Ace Pub","address":"Gangnam"}]`))
	})
	tokens := &memTokens{access: "stale", refresh: "r-1"}
	c := newClient(t, mux).WithTokens(tokens)

	stores, err := c.Stores(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "Ace Pub", stores[0].Name)
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
	assert.Equal(t, "fresh", tokens.access)
	assert.Equal(t, "r-1", tokens.refresh)
}

func TestSecond401ClearsSession(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		_ = json.NewEncoder(w).Encode(refreshResp{Access: "fresh"})
	})
	mux.HandleFunc("/store/info/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	tokens := &memTokens{access: "stale", refresh: "r-1"}
	c := newClient(t, mux).WithTokens(tokens)

	_, err := c.StoreInfo(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, KindUnauthenticated, KindOf(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
	assert.Equal(t, 1, tokens.cleared)
}

func TestNoRefreshWithoutSession(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
	})
	mux.HandleFunc("/accounts/token/user/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
	})
	c := newClient(t, mux)

	_, err := c.Login(context.Background(), model.RoleUser, "01012345678", "bad")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindUnauthenticated, apiErr.Kind)
	assert.Equal(t, "No active account found with the given credentials", apiErr.Message)
	assert.JSONEq(t, `{"detail":"No active account found with the given credentials"}`, string(apiErr.Payload))
	assert.Zero(t, atomic.LoadInt32(&refreshes))
}

func TestErrorKinds(t *testing.T) {
	cases := map[int]Kind{
		http.StatusBadRequest:          KindValidation,
		http.StatusConflict:            KindValidation,
		http.StatusForbidden:           KindForbidden,
		http.StatusNotFound:            KindNotFound,
		http.StatusInternalServerError: KindServer,
		http.StatusBadGateway:          KindServer,
		http.StatusTeapot:              KindOther,
	}
	for status, want := range cases {
		status := status
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := c.DashboardStats(context.Background())
		assert.Equal(t, want, KindOf(err), "status %d", status)
	}
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindOther, KindOf(errors.New("boom")))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(Options{BaseURL: url})

	_, err := c.Tournaments(context.Background(), "")
	assert.True(t, IsKind(err, KindNetwork))
}

func TestMessageFrom(t *testing.T) {
	assert.Equal(t, "bad phone", messageFrom([]byte(`{"error":"bad phone"}`), 400))
	assert.Equal(t, "nope", messageFrom([]byte(`{"detail":"nope"}`), 403))
	assert.Equal(t, "pick one", messageFrom([]byte(`{"non_field_errors":["pick one"]}`), 400))
	assert.Equal(t, "email: enter a valid email", messageFrom([]byte(`{"phone":[],"email":["enter a valid email"]}`), 400))
	assert.Equal(t, "internal server error", messageFrom([]byte(`<html>oops</html>`), 500))
}

func TestGetListShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tournaments/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UPCOMING", r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`{"count":1,"results":[{"id":3,"name":"Sunday Main"}]}`))
	})
	mux.HandleFunc("/store/tournaments/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	c := newClient(t, mux)

	list, err := c.Tournaments(context.Background(), "UPCOMING")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.EqualValues(t, 3, list[0].ID)

	empty, err := c.StoreTournaments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSearchUserNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/store/search-user/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("phone") == "01011112222" {
			_, _ = w.Write([]byte(`{"found":true,"user":{"id":9,"phone":"01011112222"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	c := newClient(t, mux)

	u, found, err := c.SearchUser(context.Background(), "01011112222")
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 9, u.ID)

	u, found, err = c.SearchUser(context.Background(), "01033334444")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, u)
}

func TestRegisterPlayerSuccessFalse(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"already registered"}`))
	}))
	_, err := c.RegisterPlayer(context.Background(), model.RegistrationRequest{TournamentID: 1, UserID: 2})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Equal(t, "already registered", apiErr.Message)
}

func TestScanQRCodeShapes(t *testing.T) {
	var n int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user_id:42,uuid:x", body["qr_data"])
		if atomic.AddInt32(&n, 1) == 1 {
			_, _ = w.Write([]byte(`{"user":{"id":42,"phone":"01099998888"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":42,"nickname":"Ace"}`))
	}))

	u, err := c.ScanQRCode(context.Background(), "user_id:42,uuid:x")
	require.NoError(t, err)
	assert.Equal(t, "01099998888", u.Phone)

	u, err = c.ScanQRCode(context.Background(), "user_id:42,uuid:x")
	require.NoError(t, err)
	assert.Equal(t, "Ace", u.Nickname)
}

func TestSignupAndUsernameCheck(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/users/check_username/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"is_available":%t}`, r.URL.Query().Get("username") != "taken")
	})
	mux.HandleFunc("/accounts/users/", func(w http.ResponseWriter, r *http.Request) {
		var s model.Signup
		require.NoError(t, json.NewDecoder(r.Body).Decode(&s))
		if s.Email == "dup@example.com" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"email":["user with this email already exists."]}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"id":77,"phone":%q,"username":%q}`, s.Phone, s.Username)
	})
	c := newClient(t, mux)
	ctx := context.Background()

	ok, err := c.UsernameAvailable(ctx, "river")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.UsernameAvailable(ctx, "taken")
	require.NoError(t, err)
	assert.False(t, ok)

	u, err := c.Signup(ctx, model.Signup{Username: "river", Email: "r@example.com", Password: "longenough", Phone: "010-1234-5678"})
	require.NoError(t, err)
	assert.EqualValues(t, 77, u.ID)
	assert.Equal(t, "010-1234-5678", u.Phone)

	_, err = c.Signup(ctx, model.Signup{Username: "river2", Email: "dup@example.com", Password: "longenough", Phone: "010-1234-5679"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.JSONEq(t, `{"email":["user with this email already exists."]}`, string(apiErr.Payload))
}

func TestNoticesPaginated(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notices/", r.URL.Path)
		_, _ = w.Write([]byte(`{"count":2,"results":[{"id":1,"title":"Holiday hours","notice_type":"GENERAL","priority":"HIGH"},{"id":2,"title":"Dealer meeting","notice_type":"STORE_MANAGER","priority":"NORMAL"}]}`))
	}))
	list, err := c.Notices(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Holiday hours", list[0].Title)
	assert.Equal(t, model.NoticeStoreManager, list[1].NoticeType)
}
