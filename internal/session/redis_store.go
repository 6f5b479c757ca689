package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// Field names mirror the local-storage keys of the browser front end so an
// operator inspecting Redis sees the familiar names.
const (
	fieldAccess    = "asl_holdem_access_token"
	fieldRefresh   = "asl_holdem_refresh_token"
	fieldUserInfo  = "asl_holdem_user_info"
	fieldUserType  = "user_type"
	fieldCreatedAt = "created_at"
)

// setTokensScript writes the token fields only when the hash still exists.
// KEYS[1] = session hash
// ARGV[1] = access token
// ARGV[2] = refresh token, empty keeps the stored one
// ARGV[3] = ttl in seconds, 0 leaves the expiry alone
var setTokensScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'asl_holdem_access_token', ARGV[1])
if ARGV[2] ~= '' then
  redis.call('HSET', KEYS[1], 'asl_holdem_refresh_token', ARGV[2])
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
end
return 1
`)

// RedisStore keeps each session in a hash at <prefix>:<id> with a sliding TTL.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(id string) string { return r.prefix + ":" + id }

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session get: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	s := &Session{
		ID:           id,
		AccessToken:  vals[fieldAccess],
		RefreshToken: vals[fieldRefresh],
		UserType:     model.Role(vals[fieldUserType]),
	}
	if raw := vals[fieldUserInfo]; raw != "" {
		var u model.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			s.User = &u
		}
	}
	if ts := vals[fieldCreatedAt]; ts != "" {
		s.CreatedAt, _ = time.Parse(time.RFC3339, ts)
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session: save without id")
	}
	userInfo := ""
	if s.User != nil {
		b, err := json.Marshal(s.User)
		if err != nil {
			return fmt.Errorf("session encode profile: %w", err)
		}
		userInfo = string(b)
	}
	key := r.key(s.ID)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, map[string]interface{}{
			fieldAccess:    s.AccessToken,
			fieldRefresh:   s.RefreshToken,
			fieldUserInfo:  userInfo,
			fieldUserType:  string(s.UserType),
			fieldCreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		})
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

func (r *RedisStore) SetTokens(ctx context.Context, id, access, refresh string) error {
	n, err := setTokensScript.Run(ctx, r.rdb, []string{r.key(id)}, access, refresh, int64(r.ttl/time.Second)).Int()
	if err != nil {
		return fmt.Errorf("session set tokens: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
