package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve in minimal containers
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Backend, session and workflow settings are
// required or defaulted here; Redis, cache and rate limiting have their own
// loaders next to this file.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	LogLevel       string        // zap level override, empty keeps the env default
	BackendBaseURL string        // base URL of the tournament REST API, e.g. http://localhost:8000/api/v1
	BackendTimeout time.Duration // per-request timeout towards the backend
	BackendRPS     float64       // outbound request rate towards the backend
	BackendBurst   int           // outbound burst size
	SessionSecret  string        // HMAC secret used to sign the session cookie
	SessionTTL     time.Duration // lifetime of a session record and its cookie
	CookieSecure   bool          // mark the session cookie Secure

	SearchDebounce     time.Duration  // quiet period before a phone search fires
	PhoneMinDigits     int            // digits required before a phone search fires
	DeskIdleTimeout    time.Duration  // registration desks unused this long are dropped
	DeskSweepInterval  time.Duration  // how often idle or orphaned desks are collected
	TournamentDuration time.Duration  // assumed duration when a tournament has no end_time
	Location           *time.Location // calendar used for "today" filtering

	DBUser string // journal database username (optional)
	DBPass string // journal database password (optional)
	DBHost string // journal database host; empty disables the journal
	DBPort string // journal database port
	DBName string // journal database name

	AMQPURL       string // RabbitMQ URL; empty disables check-in events
	CheckinLogDir string // file journal used when no database is configured
}

// JournalEnabled reports whether a MySQL check-in journal is configured.
func (c Config) JournalEnabled() bool { return c.DBHost != "" }

// Load reads configuration values from environment variables and returns a
// Config.  Missing required variables or malformed values are reported as a
// single error listing every problem found.
func Load() (Config, error) {
	var problems []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			problems = append(problems, "missing required env var: "+key)
		}
		return strings.TrimSpace(v)
	}

	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		BackendBaseURL: strings.TrimRight(must("BACKEND_BASE_URL"), "/"),
		BackendTimeout: envDur("BACKEND_TIMEOUT", 10*time.Second),
		BackendRPS:     envFloat("BACKEND_RPS", 20),
		BackendBurst:   envInt("BACKEND_BURST", 40),
		SessionSecret:  must("SESSION_SECRET"),
		SessionTTL:     envDur("SESSION_TTL", 7*24*time.Hour),
		CookieSecure:   envBool("COOKIE_SECURE", false),

		SearchDebounce:     envDur("SEARCH_DEBOUNCE", time.Second),
		PhoneMinDigits:     envInt("PHONE_MIN_DIGITS", 10),
		DeskIdleTimeout:    envDur("DESK_IDLE_TIMEOUT", 12*time.Hour),
		DeskSweepInterval:  envDur("DESK_SWEEP_INTERVAL", time.Minute),
		TournamentDuration: envDur("TOURNAMENT_DURATION", 4*time.Hour),

		DBUser: os.Getenv("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: os.Getenv("DB_HOST"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: envStr("DB_NAME", "asl_holdem_bff"),

		AMQPURL:       firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
		CheckinLogDir: envStr("CHECKIN_LOG_DIR", "var"),
	}

	tz := envStr("APP_TIMEZONE", "Asia/Seoul")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		problems = append(problems, fmt.Sprintf("invalid APP_TIMEZONE %q: %v", tz, err))
		loc = time.UTC
	}
	cfg.Location = loc

	if len(cfg.SessionSecret) > 0 && len(cfg.SessionSecret) < 16 {
		problems = append(problems, "SESSION_SECRET must be at least 16 characters")
	}
	if cfg.PhoneMinDigits < 1 {
		problems = append(problems, "PHONE_MIN_DIGITS must be positive")
	}
	if cfg.JournalEnabled() && cfg.DBUser == "" {
		problems = append(problems, "DB_USER is required when DB_HOST is set")
	}

	if len(problems) > 0 {
		return cfg, fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return d
}
