package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration populated from environment variables.
type Config struct {
	// Core
	ServerName string
	ServerHost string
	ServerPort int
	ServerEnv  string // "development" or "production"
	LogLevel   string
	MOTD       string

	// State persistence
	StatePath     string
	FlushDelayMS  int
	RetentionDays int

	// Gateway
	AllowedOrigins []string
	MaxConnections int

	// Resume tokens
	SessionSecret          string
	SessionSecretEphemeral bool
	ResumeTokenTTL         time.Duration

	// Rate limiting
	RateLimitCount        int
	RateLimitWindowMS     int
	WireRateLimitCount    int
	WireRateLimitWindowMS int
}

// Load reads configuration from environment variables. Every variable has a
// default so a bare `ircultra` boots; it returns an error if any variable is
// set but cannot be parsed or fails validation.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		ServerName: envStr("IRC_SERVER_NAME", "irc-ultra"),
		ServerHost: envStr("IRC_SERVER_HOST", "0.0.0.0"),
		ServerPort: p.int("IRC_SERVER_PORT", p.int("PORT", 7001)),
		ServerEnv:  envStr("IRC_ENV", "production"),
		LogLevel:   envStr("IRC_LOG_LEVEL", "info"),
		MOTD:       envStr("IRC_MOTD", "Welcome to IRC Ultra."),

		StatePath:     envStr("IRC_STATE_PATH", "data/irc-ultra-state.json"),
		FlushDelayMS:  p.int("IRC_FLUSH_DELAY_MS", 800),
		RetentionDays: p.int("RETENTION_DAYS", 30),

		AllowedOrigins: splitList(envStr("IRC_ALLOWED_ORIGINS", "")),
		MaxConnections: p.int("IRC_MAX_CONNECTIONS", 4096),

		SessionSecret:  envStr("IRC_SESSION_SECRET", ""),
		ResumeTokenTTL: p.duration("IRC_RESUME_TOKEN_TTL", 7*24*time.Hour),

		RateLimitCount:        p.int("IRC_RATE_LIMIT_COUNT", 25),
		RateLimitWindowMS:     p.int("IRC_RATE_LIMIT_WINDOW_MS", 5000),
		WireRateLimitCount:    p.int("IRC_WIRE_RATE_LIMIT_COUNT", 10),
		WireRateLimitWindowMS: p.int("IRC_WIRE_RATE_LIMIT_WINDOW_MS", 5000),
	}

	if parseErr := errors.Join(p.errs...); parseErr != nil {
		return nil, parseErr
	}

	// Without a configured secret, resume tokens are signed with a random
	// key that lives only as long as the process. main logs a warning so
	// operators know resumes will not survive a restart.
	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral session secret: %w", err)
		}
		cfg.SessionSecret = secret
		cfg.SessionSecretEphemeral = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment returns true when running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.ServerEnv == "development"
}

// Addr returns the host:port string the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// FlushDelay returns the write-behind flush delay as a duration.
func (c *Config) FlushDelay() time.Duration {
	return time.Duration(c.FlushDelayMS) * time.Millisecond
}

// RateLimitWindow returns the general rate-limit window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

// WireRateLimitWindow returns the classical-wire rate-limit window as a
// duration.
func (c *Config) WireRateLimitWindow() time.Duration {
	return time.Duration(c.WireRateLimitWindowMS) * time.Millisecond
}

func (c *Config) validate() error {
	var errs []error

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("IRC_SERVER_PORT must be between 1 and 65535"))
	}

	if c.StatePath == "" {
		errs = append(errs, fmt.Errorf("IRC_STATE_PATH must not be empty"))
	}

	if c.FlushDelayMS < 1 {
		errs = append(errs, fmt.Errorf("IRC_FLUSH_DELAY_MS must be at least 1"))
	}

	if c.RetentionDays < 1 {
		errs = append(errs, fmt.Errorf("RETENTION_DAYS must be at least 1"))
	}

	if c.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("IRC_MAX_CONNECTIONS must be at least 1"))
	}

	if !c.SessionSecretEphemeral && len(c.SessionSecret) < 32 {
		errs = append(errs, fmt.Errorf("IRC_SESSION_SECRET must be at least 32 characters"))
	}

	if c.ResumeTokenTTL < time.Second {
		errs = append(errs, fmt.Errorf("IRC_RESUME_TOKEN_TTL must be at least 1s"))
	}

	if c.RateLimitCount < 1 {
		errs = append(errs, fmt.Errorf("IRC_RATE_LIMIT_COUNT must be at least 1"))
	}
	if c.RateLimitWindowMS < 1 {
		errs = append(errs, fmt.Errorf("IRC_RATE_LIMIT_WINDOW_MS must be at least 1"))
	}
	if c.WireRateLimitCount < 1 {
		errs = append(errs, fmt.Errorf("IRC_WIRE_RATE_LIMIT_COUNT must be at least 1"))
	}
	if c.WireRateLimitWindowMS < 1 {
		errs = append(errs, fmt.Errorf("IRC_WIRE_RATE_LIMIT_WINDOW_MS must be at least 1"))
	}

	return errors.Join(errs...)
}

// parser collects parse errors so Load can report all invalid values at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected integer)", key, v))
		return fallback
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected duration like \"24h\" or \"30m\")", key, v))
		return fallback
	}
	return d
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList parses a comma-separated list, trimming entries and dropping
// empties.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
