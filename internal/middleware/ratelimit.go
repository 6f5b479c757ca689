package middleware

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/asl-holdem-bff/internal/config"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

// loginAttemptsScript keeps one sorted set of attempt timestamps per key and
// admits an attempt only while every key holds fewer than the limit inside
// the window.  An admitted attempt is logged under all keys.
// KEYS    = attempt logs (client IP, then the phone being tried)
// ARGV[1] = now in ms
// ARGV[2] = window in ms
// ARGV[3] = max attempts per window
// ARGV[4] = member id of this attempt
// returns {admitted, attempts in window, wait ms}
var loginAttemptsScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local seen, wait = 0, 0
for _, key in ipairs(KEYS) do
  redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
  local n = redis.call('ZCARD', key)
  if n > seen then seen = n end
  if n >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local w = math.max(1, tonumber(oldest[2]) + window - now)
    if w > wait then wait = w end
  end
end
if wait > 0 then
  return {0, seen, wait}
end
for _, key in ipairs(KEYS) do
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
end
return {1, seen + 1, 0}
`)

// maxLoginBody bounds how much of the login body is read to find the phone.
const maxLoginBody = 4 << 10

// NewLoginGuard throttles the login route per client IP and per phone
// number.  A phone that keeps failing is locked for the window no matter
// how many addresses it is tried from; a successful login clears that
// phone's log.  Redis errors fail open.
func NewLoginGuard(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("login_guard")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			keys := loginKeys(cfg, c)
			res, err := loginAttemptsScript.Run(ctx, rdb, keys,
				time.Now().UnixMilli(), cfg.Window.Milliseconds(), cfg.MaxAttempts, uuid.NewString()).Int64Slice()
			if err != nil || len(res) != 3 {
				log.Warn("redis error, allowing login", zap.Strings("keys", keys), zap.Error(err))
				return next(c)
			}
			admitted, seen, waitMs := res[0] == 1, res[1], res[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxAttempts))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(cfg.MaxAttempts)-seen), 10))
			if !admitted {
				secs := int(math.Ceil(float64(waitMs) / 1000.0))
				h.Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					log.Info("login blocked", zap.Strings("keys", keys), zap.Int64("wait_ms", waitMs))
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too many login attempts, try again shortly",
					"retry_after": secs,
				})
			}

			err = next(c)
			if err == nil && c.Response().Status == http.StatusOK && len(keys) > 1 {
				if derr := rdb.Del(ctx, keys[1]).Err(); derr != nil {
					log.Warn("clear phone attempts", zap.Error(derr))
				}
			}
			return err
		}
	}
}

// loginKeys returns <prefix>:ip:<addr> and, when the body names one,
// <prefix>:phone:<digest>.  Phone numbers are digested so Redis never
// holds them in clear.  The body is restored for the handler.
func loginKeys(cfg config.RateLimitConfig, c echo.Context) []string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	keys := []string{cfg.Prefix + ":ip:" + ip}

	req := c.Request()
	if req.Body == nil {
		return keys
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxLoginBody))
	if err != nil {
		return keys
	}
	req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), req.Body))

	var body struct {
		Phone string `json:"phone"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return keys
	}
	if phone := session.NormalizePhone(body.Phone); phone != "" {
		sum := sha1.Sum([]byte(phone))
		keys = append(keys, cfg.Prefix+":phone:"+hex.EncodeToString(sum[:10]))
	}
	return keys
}
