package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig controls the fixed-window counter applied to /auth/login.
// The limiter is keyed by client IP: at most MaxAttempts login calls per
// Window from one address. When Redis is unavailable the limiter is a
// pass-through — availability beats throttling on the authentication path.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:     envBool("LOGIN_RATE_LIMIT_ENABLED", true),
		MaxAttempts: envInt("LOGIN_RATE_LIMIT_MAX_ATTEMPTS", 10),
		Window:      envDur("LOGIN_RATE_LIMIT_WINDOW", time.Minute),
		Prefix:      envStr("LOGIN_RATE_LIMIT_PREFIX", "rl:login"),
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Window < time.Second {
		cfg.Window = time.Second
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
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
