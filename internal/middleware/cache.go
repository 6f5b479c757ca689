package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/asl-holdem-bff/internal/config"
)

// Listing entries are hashes with these fields.
const (
	fieldStatus      = "status"
	fieldContentType = "content_type"
	fieldBody        = "body"
	fieldStoredAt    = "stored_at"
)

// teeWriter copies up to limit bytes of the response while forwarding it.
type teeWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (tw *teeWriter) WriteHeader(code int) {
	tw.status = code
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *teeWriter) Write(b []byte) (int, error) {
	if !tw.truncated {
		if tw.limit > 0 && int64(tw.buf.Len()+len(b)) > tw.limit {
			tw.truncated = true
			tw.buf.Reset()
		} else {
			tw.buf.Write(b)
		}
	}
	return tw.ResponseWriter.Write(b)
}

// listingKey names an entry <prefix>:<path>:<local date>:<query digest>.
// The date part rolls entries over at midnight on the calendar, when the
// "today" and "upcoming" filters change meaning.  Query parameters are
// sorted so ?a=1&b=2 and ?b=2&a=1 share an entry.
func listingKey(cfg config.CacheConfig, r *http.Request, now time.Time) string {
	loc := cfg.Calendar
	if loc == nil {
		loc = time.UTC
	}
	path := strings.ReplaceAll(strings.Trim(r.URL.Path, "/"), "/", ".")
	sum := sha1.Sum([]byte(r.URL.Query().Encode()))
	return cfg.Prefix + ":" + path + ":" + now.In(loc).Format("20060102") + ":" + hex.EncodeToString(sum[:8])
}

// NewRedisCache serves repeated public listing requests from Redis.  Only
// anonymous requests are cached: anything answered for a session may
// depend on who asked.  Only 200 responses are stored.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !cfg.Methods[strings.ToUpper(req.Method)] || SessionID(c) != "" {
				return next(c)
			}
			ctx := req.Context()
			now := time.Now()
			key := listingKey(cfg, req, now)

			if vals, err := rdb.HGetAll(ctx, key).Result(); err == nil && vals[fieldBody] != "" {
				status, _ := strconv.Atoi(vals[fieldStatus])
				if status == 0 {
					status = http.StatusOK
				}
				h := c.Response().Header()
				h.Set("X-Cache", "HIT")
				if stored, err := strconv.ParseInt(vals[fieldStoredAt], 10, 64); err == nil {
					h.Set("Age", strconv.FormatInt(max(0, now.Unix()-stored), 10))
				}
				return c.Blob(status, vals[fieldContentType], []byte(vals[fieldBody]))
			}

			tw := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = tw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if tw.status != http.StatusOK || tw.truncated || tw.buf.Len() == 0 {
				return nil
			}
			entry := map[string]interface{}{
				fieldStatus:      tw.status,
				fieldContentType: c.Response().Header().Get(echo.HeaderContentType),
				fieldBody:        tw.buf.String(),
				fieldStoredAt:    now.Unix(),
			}
			wctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, _ = rdb.TxPipelined(wctx, func(p redis.Pipeliner) error {
				p.HSet(wctx, key, entry)
				p.Expire(wctx, key, ttl)
				return nil
			})
			return nil
		}
	}
}
