package handler_test

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/asl-holdem-bff/internal/apiclient"
	"github.com/iliyamo/asl-holdem-bff/internal/config"
	"github.com/iliyamo/asl-holdem-bff/internal/handler"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/registration"
	"github.com/iliyamo/asl-holdem-bff/internal/router"
	"github.com/iliyamo/asl-holdem-bff/internal/scanner"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

const desktopUA = "Mozilla/5.0 (X11; Linux x86_64)"

// backend is a fake tournament API with just enough state for the flows.
type backend struct {
	t   *testing.T
	now time.Time

	mu         sync.Mutex
	players    []model.Participant
	registered []model.RegistrationRequest
	grants     []model.TicketGrant
	profile    model.StoreProfile
	signups    []model.Signup
}

var users = map[string]model.User{
	"01012345678": {ID: 7, Phone: "01012345678", Nickname: "River"},
	"01055556666": {ID: 3, Phone: "01055556666", Nickname: "Ace Pub manager"},
	"01000000000": {ID: 1, Phone: "01000000000", Nickname: "root"},
	"01099998888": {ID: 42, Phone: "01099998888", Nickname: "Ace"},
}

func (b *backend) access(u model.User) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": u.ID, "phone": u.Phone, "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("backend"))
	require.NoError(b.t, err)
	return tok
}

func (b *backend) registrations() []model.RegistrationRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.RegistrationRequest(nil), b.registered...)
}

func (b *backend) signupLog() []model.Signup {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Signup(nil), b.signups...)
}

func (b *backend) grantLog() []model.TicketGrant {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.TicketGrant(nil), b.grants...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) routes() http.Handler {
	mux := http.NewServeMux()
	for _, role := range []string{"admin", "store", "user"} {
		mux.HandleFunc("/accounts/token/"+role+"/", func(w http.ResponseWriter, r *http.Request) {
			var body struct{ Phone, Password string }
			_ = json.NewDecoder(r.Body).Decode(&body)
			u, ok := users[body.Phone]
			if !ok || body.Password != "pw" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"access": b.access(u), "refresh": "r-" + body.Phone})
		})
	}
	mux.HandleFunc("/accounts/users/get_user/", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Phone string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, users[body.Phone])
	})
	mux.HandleFunc("/accounts/users/check_username/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"is_available": r.URL.Query().Get("username") != "river"})
	})
	mux.HandleFunc("/accounts/users/", func(w http.ResponseWriter, r *http.Request) {
		var s model.Signup
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&s))
		if s.Email == "taken@example.com" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"user with this email already exists."}})
			return
		}
		b.mu.Lock()
		b.signups = append(b.signups, s)
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, model.User{ID: 500, Phone: s.Phone, Username: s.Username, Email: s.Email})
	})
	mux.HandleFunc("/notices/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"results": []model.Notice{
			{ID: 1, Title: "Dealer meeting", NoticeType: model.NoticeStoreManager, Priority: "NORMAL", CreatedAt: "2024-05-01T09:00:00Z"},
			{ID: 2, Title: "Holiday hours", NoticeType: model.NoticeGeneral, Priority: "NORMAL", CreatedAt: "2024-05-02T09:00:00Z"},
			{ID: 3, Title: "Server maintenance", NoticeType: model.NoticeGeneral, Priority: "URGENT", CreatedAt: "2024-04-20T09:00:00Z"},
			{ID: 4, Title: "Member league", NoticeType: model.NoticeMemberOnly, Priority: "LOW", IsPinned: true, CreatedAt: "2024-04-01T09:00:00Z"},
		}})
	})
	mux.HandleFunc("/tournaments/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []model.Tournament{
			{ID: 1, Name: "Morning Turbo", StartTime: b.now.Add(-10 * time.Hour), StoreName: "Ace Pub"},
			{ID: 2, Name: "Sunday Main", StartTime: b.now.Add(-time.Hour), StoreName: "River House"},
			{ID: 3, Name: "Friday Deepstack", StartTime: b.now.Add(48 * time.Hour), StoreName: "Ace Pub"},
		})
	})
	mux.HandleFunc("/store/tournaments/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"results": []model.Tournament{
			{ID: 3, Name: "Friday Deepstack", StartTime: b.now.Add(48 * time.Hour), StoreName: "Ace Pub"},
		}})
	})
	mux.HandleFunc("/stores/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []model.Store{
			{ID: 1, Name: "River House", Address: "Busan Haeundae"},
			{ID: 2, Name: "Ace Pub", Address: "Seoul Gangnam"},
		})
	})
	mux.HandleFunc("/store/info/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if r.Method == http.MethodPut {
			require.NoError(b.t, json.NewDecoder(r.Body).Decode(&b.profile))
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, http.StatusOK, b.profile)
	})
	mux.HandleFunc("/store/search-user/", func(w http.ResponseWriter, r *http.Request) {
		u, ok := users[r.URL.Query().Get("phone")]
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"found": true, "user": u})
	})
	mux.HandleFunc("/store/user-tickets/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.TicketBalance{UserID: 7, TournamentID: 3, ActiveTickets: 2, TotalTickets: 2})
	})
	mux.HandleFunc("/store/grant-ticket/", func(w http.ResponseWriter, r *http.Request) {
		var g model.TicketGrant
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&g))
		b.mu.Lock()
		b.grants = append(b.grants, g)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, model.TicketBalance{UserID: g.UserID, TournamentID: g.TournamentID, ActiveTickets: g.Quantity, TotalTickets: g.Quantity})
	})
	mux.HandleFunc("/store/register-player/", func(w http.ResponseWriter, r *http.Request) {
		var req model.RegistrationRequest
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&req))
		b.mu.Lock()
		defer b.mu.Unlock()
		b.registered = append(b.registered, req)
		p := model.Participant{UserID: req.UserID, Phone: req.PhoneNumber, Nickname: req.Nickname}
		b.players = append(b.players, p)
		writeJSON(w, http.StatusCreated, model.RegistrationResult{Success: true, Participant: &p})
	})
	mux.HandleFunc("/tournaments/dashboard/player_mapping/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, model.PlayerMapping{TournamentName: "Friday Deepstack", TotalPlayers: len(b.players), Players: b.players})
	})
	mux.HandleFunc("/user/scan-qr-code/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": users["01099998888"]})
	})
	mux.HandleFunc("/seats/tickets/user_stats/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.TicketStats{
			Overall: model.TicketTotals{ActiveTickets: 3, TotalTickets: 4, UsedTickets: 1},
			Tournaments: []model.TournamentTicketStat{
				{TournamentID: 1, TournamentName: "Old Cup", TournamentStartTime: b.now.Add(-72 * time.Hour), UsedTickets: 1, TotalTickets: 1},
				{TournamentID: 3, TournamentName: "Friday Deepstack", TournamentStartTime: b.now.Add(48 * time.Hour), ActiveTickets: 3, TotalTickets: 3},
			},
		})
	})
	mux.HandleFunc("/tournaments/dashboard/stats-simple/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.DashboardStats{TournamentCount: 3, StoreCount: 2})
	})
	return mux
}

type app struct {
	e  *echo.Echo
	be *backend
}

func newApp(t *testing.T) *app {
	t.Helper()
	be := &backend{t: t, now: time.Now()}
	srv := httptest.NewServer(be.routes())
	t.Cleanup(srv.Close)

	log := zap.NewNop()
	cfg := config.Config{
		Env:                "test",
		BackendBaseURL:     srv.URL,
		SessionSecret:      "0123456789abcdef-handler",
		SessionTTL:         time.Hour,
		SearchDebounce:     10 * time.Millisecond,
		PhoneMinDigits:     10,
		TournamentDuration: 4 * time.Hour,
		Location:           time.UTC,
	}
	api := apiclient.New(apiclient.Options{BaseURL: srv.URL, Logger: log})
	sessions := session.NewService(session.NewMemoryStore(time.Hour), api, log)
	desks := registration.NewRegistry(func(sid string) *registration.Workflow {
		return registration.New(sessions.Client(sid), registration.Options{Debounce: cfg.SearchDebounce, MinDigits: cfg.PhoneMinDigits, Logger: log})
	})
	sessions.OnLogout(desks.Evict)

	e := echo.New()
	guards := router.Guards{Secret: cfg.SessionSecret, Sessions: sessions}
	auth := handler.NewAuthHandler(cfg, sessions)
	listing := handler.NewListingHandler(cfg, sessions)
	listing.Now = func() time.Time { return be.now }
	router.RegisterRoutes(e, &handler.ReadyHandler{})
	router.RegisterAuth(e, guards, auth, &handler.DashboardHandler{Sessions: sessions, Log: log})
	router.RegisterPublic(e, guards, listing)
	router.RegisterStore(e, guards,
		&handler.StoreHandler{Sessions: sessions},
		&handler.RegistrationHandler{Desks: desks, Log: log},
		&handler.TicketHandler{Sessions: sessions, Desks: desks},
	)
	router.RegisterUser(e, guards, listing, auth)
	router.RegisterAdmin(e, guards, &handler.CheckinHandler{})
	return &app{e: e, be: be}
}

func (a *app) do(method, target, token string, body any) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != nil {
		bs, _ := json.Marshal(body)
		rdr = bytes.NewReader(bs)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", desktopUA)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) login(t *testing.T, phone, role string) string {
	t.Helper()
	rec := a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"phone": phone, "password": "pw", "user_type": role})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token    string `json:"token"`
		UserType string `json:"user_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	assert.Equal(t, role, out.UserType)
	return out.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// deskState polls the registration snapshot; safe to call from Eventually.
func (a *app) desk(tok string) registration.Snapshot {
	var snap registration.Snapshot
	_ = json.Unmarshal(a.do(http.MethodGet, "/v1/store/registration", tok, nil).Body.Bytes(), &snap)
	return snap
}

func (a *app) deskState(tok string) registration.State { return a.desk(tok).State }

func TestLoginMeLogout(t *testing.T) {
	a := newApp(t)
	tok := a.login(t, "010-1234-5678", "user")

	rec := a.do(http.MethodGet, "/v1/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		User     model.User `json:"user"`
		UserType string     `json:"user_type"`
	}](t, rec)
	assert.EqualValues(t, 7, me.User.ID)
	assert.Equal(t, "River", me.User.Nickname)
	assert.Equal(t, "user", me.UserType)

	rec = a.do(http.MethodPost, "/v1/auth/logout", tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/me", tok, nil).Code)
}

func TestLoginSetsCookie(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"phone": "01012345678", "password": "pw", "user_type": "user"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "asl_session=")
	assert.Contains(t, cookie, "HttpOnly")
}

func TestLoginRejectionRelaysBackendPayload(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"phone": "01012345678", "password": "nope", "user_type": "user"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"No active account found with the given credentials"}`, rec.Body.String())

	rec = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"phone": "01012345678", "password": "pw", "user_type": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"phone": "", "password": "pw", "user_type": "user"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminLoginBlockedOnMobile(t *testing.T) {
	a := newApp(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"phone":"01000000000","password":"pw","user_type":"admin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	a.login(t, "01000000000", "admin")
}

type listResp[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func TestTournamentFilters(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodGet, "/v1/tournaments?filter=upcoming", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	up := decode[listResp[model.Tournament]](t, rec)
	require.Len(t, up.Results, 1)
	assert.EqualValues(t, 3, up.Results[0].ID)
	assert.Equal(t, model.StatusUpcoming, up.Results[0].Status)

	rec = a.do(http.MethodGet, "/v1/tournaments?filter=ongoing", "", nil)
	on := decode[listResp[model.Tournament]](t, rec)
	require.Len(t, on.Results, 1)
	assert.EqualValues(t, 2, on.Results[0].ID)

	rec = a.do(http.MethodGet, "/v1/tournaments?q=ace+pub", "", nil)
	hits := decode[listResp[model.Tournament]](t, rec)
	assert.Equal(t, 2, hits.Count)
	// newest start first
	assert.EqualValues(t, 3, hits.Results[0].ID)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/tournaments?filter=soon", "", nil).Code)
}

func TestStoreCategoryNeedsStoreSession(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/tournaments?category=store", "", nil).Code)

	userTok := a.login(t, "01012345678", "user")
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/tournaments?category=store", userTok, nil).Code)

	storeTok := a.login(t, "01055556666", "store")
	rec := a.do(http.MethodGet, "/v1/tournaments?category=store", storeTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listResp[model.Tournament]](t, rec).Count)
}

func TestStoreSearch(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodGet, "/v1/stores?q=gangnam", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[listResp[model.Store]](t, rec)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Ace Pub", out.Results[0].Name)

	all := decode[listResp[model.Store]](t, a.do(http.MethodGet, "/v1/stores", "", nil))
	assert.Equal(t, 2, all.Count)
}

func TestDashboardMenuByRole(t *testing.T) {
	a := newApp(t)
	type dash struct {
		UserType string             `json:"user_type"`
		Menu     []handler.MenuCard `json:"menu"`
		Stats    json.RawMessage    `json:"stats"`
		Notices  []model.Notice     `json:"notices"`
	}
	keys := func(d dash) []string {
		out := make([]string, len(d.Menu))
		for i, m := range d.Menu {
			out[i] = m.Key
		}
		return out
	}

	store := decode[dash](t, a.do(http.MethodGet, "/v1/dashboard", a.login(t, "01055556666", "store"), nil))
	assert.Equal(t, "store", store.UserType)
	assert.Contains(t, keys(store), "registration")
	assert.NotContains(t, keys(store), "checkins")

	user := decode[dash](t, a.do(http.MethodGet, "/v1/dashboard", a.login(t, "01012345678", "user"), nil))
	assert.Contains(t, keys(user), "qr")
	assert.JSONEq(t, `{"active_tickets":3,"used_tickets":1,"total_tickets":4}`, string(user.Stats))

	assert.Len(t, user.Notices, 3)
	assert.Equal(t, "Member league", user.Notices[0].Title, "pinned first")

	admin := decode[dash](t, a.do(http.MethodGet, "/v1/dashboard", a.login(t, "01000000000", "admin"), nil))
	assert.Contains(t, keys(admin), "checkins")
	assert.Contains(t, keys(admin), "notices")
	assert.Contains(t, string(admin.Stats), `"store_count":2`)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/dashboard", "", nil).Code)
}

func TestNoticesFollowRole(t *testing.T) {
	a := newApp(t)
	type page struct {
		Count   int            `json:"count"`
		Results []model.Notice `json:"results"`
	}
	titles := func(p page) []string {
		out := make([]string, len(p.Results))
		for i, n := range p.Results {
			out[i] = n.Title
		}
		return out
	}

	anon := decode[page](t, a.do(http.MethodGet, "/v1/notices", "", nil))
	assert.Equal(t, []string{"Server maintenance", "Holiday hours"}, titles(anon))

	store := decode[page](t, a.do(http.MethodGet, "/v1/notices", a.login(t, "01055556666", "store"), nil))
	assert.Equal(t, []string{"Server maintenance", "Holiday hours", "Dealer meeting"}, titles(store))

	user := decode[page](t, a.do(http.MethodGet, "/v1/notices?limit=2", a.login(t, "01012345678", "user"), nil))
	assert.Equal(t, []string{"Member league", "Server maintenance"}, titles(user))
}

func TestSignup(t *testing.T) {
	a := newApp(t)
	good := map[string]string{
		"username": "minsu", "email": "minsu@example.com", "password": "longenough",
		"password_confirm": "longenough", "phone": "010-5555-7777", "nickname": "Minsu",
	}

	rec := a.do(http.MethodPost, "/v1/auth/signup", "", good)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	signups := a.be.signupLog()
	require.Len(t, signups, 1)
	assert.Equal(t, model.Signup{Username: "minsu", Email: "minsu@example.com", Password: "longenough", Phone: "010-5555-7777", Nickname: "Minsu"}, signups[0])

	type fieldsResp struct {
		Fields []registration.FieldError `json:"fields"`
	}
	fieldSet := func(rec *httptest.ResponseRecorder) []string {
		var out []string
		for _, f := range decode[fieldsResp](t, rec).Fields {
			out = append(out, f.Field)
		}
		return out
	}
	rec = a.do(http.MethodPost, "/v1/auth/signup", "", map[string]string{"email": "nope", "password": "short", "phone": "12345"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"username", "email", "password", "phone"}, fieldSet(rec))

	mismatch := map[string]string{"username": "kim", "email": "kim@example.com", "password": "longenough", "password_confirm": "different", "phone": "01055557778"}
	rec = a.do(http.MethodPost, "/v1/auth/signup", "", mismatch)
	assert.Equal(t, []string{"password_confirm"}, fieldSet(rec))

	taken := map[string]string{"username": "river", "email": "r@example.com", "password": "longenough", "phone": "01055557779"}
	rec = a.do(http.MethodPost, "/v1/auth/signup", "", taken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"username"}, fieldSet(rec))

	dupEmail := map[string]string{"username": "park", "email": "taken@example.com", "password": "longenough", "phone": "01055557770"}
	rec = a.do(http.MethodPost, "/v1/auth/signup", "", dupEmail)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user with this email already exists.")
	assert.Len(t, a.be.signupLog(), 1, "rejected forms never create accounts")
}

func TestCheckUsername(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodGet, "/v1/auth/check-username?username=river", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"river","is_available":false}`, rec.Body.String())

	rec = a.do(http.MethodGet, "/v1/auth/check-username?username=ocean", "", nil)
	assert.JSONEq(t, `{"username":"ocean","is_available":true}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/auth/check-username", "", nil).Code)
}

func TestStoreInfoUpdateRereads(t *testing.T) {
	a := newApp(t)
	tok := a.login(t, "01055556666", "store")

	rec := a.do(http.MethodPut, "/v1/store/info", tok, model.StoreProfile{Name: "  Ace Pub ", Address: "Seoul", MaxCapacity: 60})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[model.StoreProfile](t, rec)
	assert.Equal(t, "Ace Pub", saved.Name)
	assert.Equal(t, 60, saved.MaxCapacity)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPut, "/v1/store/info", tok, model.StoreProfile{Name: " "}).Code)

	userTok := a.login(t, "01012345678", "user")
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/store/info", userTok, nil).Code)
}

func TestRegistrationByPhone(t *testing.T) {
	a := newApp(t)
	tok := a.login(t, "01055556666", "store")

	rec := a.do(http.MethodPost, "/v1/store/registration/tournament", tok, map[string]any{"tournament_id": 3, "buy_in": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/v1/store/registration/phone", tok, map[string]string{"phone": "01012345678"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool { return a.deskState(tok) == registration.StateFound }, 2*time.Second, 10*time.Millisecond)
	// the ticket balance follows FOUND
	require.Eventually(t, func() bool { return a.desk(tok).CanParticipate != nil }, 2*time.Second, 10*time.Millisecond)

	snap := decode[registration.Snapshot](t, a.do(http.MethodGet, "/v1/store/registration", tok, nil))
	require.NotNil(t, snap.Candidate.FoundUser)
	assert.False(t, snap.Candidate.IsNewUser)
	require.NotNil(t, snap.CanParticipate)
	assert.True(t, *snap.CanParticipate)

	rec = a.do(http.MethodPost, "/v1/store/registration/submit", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	done := decode[registration.Snapshot](t, rec)
	assert.Equal(t, registration.StateSuccess, done.State)
	require.NotNil(t, done.Players)
	assert.True(t, done.Players.HasPlayer(7, ""))
	assert.EqualValues(t, 7, a.be.registrations()[0].UserID)
}

func TestRegistrationNewUserValidation(t *testing.T) {
	a := newApp(t)
	tok := a.login(t, "01055556666", "store")
	a.do(http.MethodPost, "/v1/store/registration/tournament", tok, map[string]any{"tournament_id": 3})
	a.do(http.MethodPost, "/v1/store/registration/phone", tok, map[string]string{"phone": "01077778888"})
	require.Eventually(t, func() bool { return a.deskState(tok) == registration.StateNotFound }, 2*time.Second, 10*time.Millisecond)

	rec := a.do(http.MethodPost, "/v1/store/registration/submit", tok, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username"`)
	assert.Empty(t, a.be.registrations())

	a.do(http.MethodPost, "/v1/store/registration/fields", tok, map[string]string{"username": "Kim", "email": "kim@example.com", "nickname": "Shark"})
	rec = a.do(http.MethodPost, "/v1/store/registration/submit", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	done := decode[registration.Snapshot](t, rec)
	assert.True(t, done.Players.HasPlayer(0, "01077778888"))
}

func TestRegistrationByQRPayload(t *testing.T) {
	a := newApp(t)
	tok := a.login(t, "01055556666", "store")
	a.do(http.MethodPost, "/v1/store/registration/tournament", tok, map[string]any{"tournament_id": 3})

	rec := a.do(http.MethodPost, "/v1/store/registration/qr", tok, map[string]string{"payload": `{"id":42,"phone":"01099998888","nickname":"Ace"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, a.be.registrations(), 1)
	assert.EqualValues(t, 42, a.be.registrations()[0].UserID)

	rec = a.do(http.MethodPost, "/v1/store/registration/qr", tok, map[string]string{"payload": "hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/store/registration/qr", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTicketGrant(t *testing.T) {
	a := newApp(t)
	tok := a.login(t, "01055556666", "store")

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/store/tickets", tok, map[string]any{"user_id": 7, "tournament_id": 3, "quantity": 0}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/store/tickets", tok, map[string]any{"user_id": 7, "tournament_id": 3, "quantity": 101}).Code)

	rec := a.do(http.MethodPost, "/v1/store/tickets", tok, map[string]any{"user_id": 7, "tournament_id": 3, "quantity": 2, "memo": " promo "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[model.TicketBalance](t, rec).ActiveTickets)
	assert.Equal(t, "promo", a.be.grantLog()[0].Memo)

	// desk grant without a found player
	rec = a.do(http.MethodPost, "/v1/store/tickets", tok, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/v1/store/tickets?user_id=7&tournament_id=3", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[model.TicketBalance](t, rec).TotalTickets)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/store/tickets?user_id=7", tok, nil).Code)
}

func TestReservationTabs(t *testing.T) {
	a := newApp(t)
	tok := a.login(t, "01012345678", "user")

	type resv struct {
		Results []struct {
			TournamentID int64 `json:"tournament_id"`
		} `json:"results"`
	}
	up := decode[resv](t, a.do(http.MethodGet, "/v1/reservations", tok, nil))
	require.Len(t, up.Results, 1)
	assert.EqualValues(t, 3, up.Results[0].TournamentID)

	past := decode[resv](t, a.do(http.MethodGet, "/v1/reservations?tab=past", tok, nil))
	require.Len(t, past.Results, 1)
	assert.EqualValues(t, 1, past.Results[0].TournamentID)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/reservations?tab=later", tok, nil).Code)
	storeTok := a.login(t, "01055556666", "store")
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/reservations", storeTok, nil).Code)
}

func TestMyQRDecodesToPlayerPayload(t *testing.T) {
	a := newApp(t)
	tok := a.login(t, "01012345678", "user")

	rec := a.do(http.MethodGet, "/v1/me/qr", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	text, err := scanner.NewQRDecoder().Decode(img)
	require.NoError(t, err)
	p, err := scanner.ParsePayload(text)
	require.NoError(t, err)
	assert.EqualValues(t, 7, p.UserID)
	assert.Equal(t, "01012345678", p.Phone)
}

func TestCheckinsWithoutJournal(t *testing.T) {
	a := newApp(t)
	tok := a.login(t, "01000000000", "admin")
	assert.Equal(t, http.StatusServiceUnavailable, a.do(http.MethodGet, "/v1/admin/checkins", tok, nil).Code)

	storeTok := a.login(t, "01055556666", "store")
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/admin/checkins", storeTok, nil).Code)
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/readyz", "", nil)
	assert.JSONEq(t, `{"redis":"disabled","journal":false,"queue":false}`, rec.Body.String())
}
