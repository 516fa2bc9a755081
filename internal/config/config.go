// Package config reads the service settings from flags, the environment and
// an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string

	JWTSecret      string
	GoogleClientID string
	RedirectURL    string
	CookieDomain   string
	CookieSameSite http.SameSite

	AllowedOrigins []string

	StorageTimeout       time.Duration
	ListenerMinReconnect time.Duration
	ListenerMaxReconnect time.Duration

	LogLevel  string
	LogFormat string
}

// Load parses args (without the program name). A missing .env file is not
// an error.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	fs := flag.NewFlagSet("livepoll", flag.ContinueOnError)

	var (
		cfg      Config
		sameSite string
		origins  string
	)
	fs.StringVar(&cfg.HTTPAddr, "addr", env("HTTP_ADDR", "0.0.0.0:8080"), "address to listen on")
	fs.StringVar(&cfg.DatabaseURL, "database-url", env("DATABASE_URL", dbConnString()), "postgres connection string")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", env("JWT_SECRET", ""), "secret used to sign access tokens")
	fs.StringVar(&cfg.GoogleClientID, "google-client-id", env("GOOGLE_CLIENT_ID", ""), "OAuth client id of the Google sign-in button")
	fs.StringVar(&cfg.RedirectURL, "redirect-url", env("AUTH_REDIRECT_URL", "/"), "where to send the browser after sign-in")
	fs.StringVar(&cfg.CookieDomain, "cookie-domain", env("COOKIE_DOMAIN", ""), "domain of the auth cookies")
	fs.StringVar(&sameSite, "cookie-samesite", env("COOKIE_SAMESITE", "lax"), "SameSite of the auth cookies: lax, strict or none")
	fs.StringVar(&origins, "cors-origins", env("CORS_ALLOWED_ORIGINS", "*"), "comma separated list of allowed origins")
	fs.DurationVar(&cfg.StorageTimeout, "storage-timeout", envDuration("STORAGE_TIMEOUT", 5*time.Second), "deadline of each storage call")
	fs.DurationVar(&cfg.ListenerMinReconnect, "listener-min-reconnect", envDuration("LISTENER_MIN_RECONNECT", time.Second), "first retry delay of the change feed")
	fs.DurationVar(&cfg.ListenerMaxReconnect, "listener-max-reconnect", envDuration("LISTENER_MAX_RECONNECT", 30*time.Second), "longest retry delay of the change feed")
	fs.StringVar(&cfg.LogLevel, "log-level", env("LOG_LEVEL", "info"), "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", env("LOG_FORMAT", "text"), "log format: text or json")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if cfg.CookieSameSite, err = parseSameSite(sameSite); err != nil {
		return nil, err
	}
	cfg.AllowedOrigins = splitList(origins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL or POSTGRES_* variables are required")
	}
	if c.StorageTimeout <= 0 {
		return errors.New("storage timeout must be positive")
	}
	if c.ListenerMinReconnect <= 0 || c.ListenerMaxReconnect < c.ListenerMinReconnect {
		return errors.New("listener reconnect interval is invalid")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// DBConnString builds a connection string from the POSTGRES_* variables.
func DBConnString() string {
	return dbConnString()
}

func dbConnString() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     host + ":" + env("POSTGRES_PORT", "5432"),
		Path:     os.Getenv("POSTGRES_DB"),
		RawQuery: "sslmode=" + env("POSTGRES_SSLMODE", "disable"),
	}
	return u.String()
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "lax", "":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	}
	return 0, fmt.Errorf("unknown SameSite mode %q", s)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
