package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/asl-holdem-bff/internal/apiclient"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/utils"
)

var (
	ErrMissingCredentials = errors.New("phone and password are required")
	ErrInvalidRole        = errors.New("unknown user type")
)

// Service is the only writer of session records.  It opens sessions against
// the backend's role login endpoints, hands out session-bound API clients
// and tears sessions down on logout or when a token refresh fails.
type Service struct {
	store Store
	api   *apiclient.Client
	log   *zap.Logger
	now   func() time.Time

	mu       sync.RWMutex
	onLogout []func(id string)
}

func NewService(store Store, api *apiclient.Client, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, api: api, log: log.Named("session"), now: time.Now}
}

// OnLogout registers a hook run after a session is destroyed, whether by an
// explicit logout or by a failed refresh.
func (s *Service) OnLogout(fn func(id string)) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// NormalizePhone strips the separators users type into phone fields.
func NormalizePhone(phone string) string {
	r := strings.NewReplacer("-", "", " ", "")
	return r.Replace(strings.TrimSpace(phone))
}

// Login exchanges phone, password and role for a backend token pair and
// stores a new session.  A backend rejection is returned as the typed
// *apiclient.Error so callers can relay its payload unchanged.
func (s *Service) Login(ctx context.Context, phone, password string, role model.Role) (*Session, error) {
	phone = NormalizePhone(phone)
	if phone == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if _, ok := model.ParseRole(string(role)); !ok {
		return nil, ErrInvalidRole
	}

	pair, err := s.api.Login(ctx, role, phone, password)
	if err != nil {
		s.log.Info("login rejected", zap.String("role", string(role)), zap.Error(err))
		return nil, err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return nil, &apiclient.Error{Kind: apiclient.KindServer, Status: 200, Message: "login response without tokens"}
	}

	sess := &Session{
		ID:           uuid.NewString(),
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		UserType:     role,
		CreatedAt:    s.now().UTC(),
	}
	if u, _, err := utils.ProfileFromAccessToken(pair.Access, role); err == nil {
		sess.User = u
	} else {
		s.log.Debug("access token carries no readable profile", zap.Error(err))
		sess.User = &model.User{Phone: phone, Role: role.BackendRole()}
	}
	if sess.User.Phone == "" {
		sess.User.Phone = phone
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	// The token claims are thin; the profile endpoint fills in names.
	if full, err := s.Client(sess.ID).GetUser(ctx, phone); err == nil && full != nil && full.ID != 0 {
		if full.Role == "" {
			full.Role = sess.User.Role
		}
		sess.User = full
		if err := s.store.Save(ctx, sess); err != nil {
			s.log.Warn("cache profile failed", zap.Error(err))
		}
	} else if err != nil {
		s.log.Debug("profile enrichment skipped", zap.Error(err))
	}

	s.log.Info("login", zap.String("session", sess.ID), zap.String("role", string(role)), zap.Int64("user_id", sess.User.ID))
	return sess, nil
}

// Logout destroys the session.  Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.RLock()
	hooks := append([]func(string){}, s.onLogout...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}
	s.log.Info("logout", zap.String("session", id))
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

func (s *Service) IsAuthenticated(ctx context.Context, id string) bool {
	sess, err := s.Get(ctx, id)
	return err == nil && sess.Authenticated()
}

// CurrentUser returns the cached profile of a session.
func (s *Service) CurrentUser(ctx context.Context, id string) (*model.User, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.User == nil {
		return &model.User{}, nil
	}
	return sess.User, nil
}

// Client returns an API client that authenticates as the session.
func (s *Service) Client(id string) *apiclient.Client {
	return s.api.WithTokens(&boundTokens{svc: s, id: id})
}

// Public returns the unauthenticated API client.
func (s *Service) Public() *apiclient.Client { return s.api }

// boundTokens adapts one session record to apiclient.Tokens.
type boundTokens struct {
	svc *Service
	id  string
}

func (b *boundTokens) AccessToken(ctx context.Context) (string, error) {
	sess, err := b.svc.store.Get(ctx, b.id)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sess.AccessToken, nil
}

func (b *boundTokens) RefreshToken(ctx context.Context) (string, error) {
	sess, err := b.svc.store.Get(ctx, b.id)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sess.RefreshToken, nil
}

func (b *boundTokens) UpdateTokens(ctx context.Context, access, refresh string) error {
	return b.svc.store.SetTokens(ctx, b.id, access, refresh)
}

func (b *boundTokens) Clear(ctx context.Context) error {
	return b.svc.Logout(ctx, b.id)
}
