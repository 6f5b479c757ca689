package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig drives the login guard: at most MaxAttempts logins per
// Window from one client IP, and the same again for one phone number.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	Prefix      string
	Debug       bool
}

func LoadRateLimitConfig() RateLimitConfig {
	c := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		MaxAttempts: envInt("RATE_LIMIT_MAX_ATTEMPTS", 10),
		Window:      envDur("RATE_LIMIT_WINDOW", time.Minute),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "asl:login"),
		Debug:       envBool("RATE_LIMIT_DEBUG", false),
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.Window < time.Second {
		c.Window = time.Second
	}
	return c
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
