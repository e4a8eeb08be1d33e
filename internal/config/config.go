// Package config loads the server configuration from the environment into
// one explicit struct that is passed to each component at construction.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	ProfileDev  = "dev"
	ProfileProd = "prod"

	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"

	MediaLocal = "local"
	MediaGCS   = "gcs"

	// devJWTSecret is only accepted in the dev profile.
	devJWTSecret = "techblogs-dev-secret-change-me"
)

type Config struct {
	Port    int
	Profile string

	UploadDir       string
	CourseUploadDir string
	AllowedOrigins  []string

	StoreBackend             string
	DBPath                   string
	FirestoreProjectID       string
	FirestoreCredentialsFile string

	MediaBackend string
	GCSBucket    string

	// GCSCredentialsFile falls back to FirestoreCredentialsFile; empty
	// means Application Default Credentials.
	GCSCredentialsFile string

	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	FirebaseProjectID  string

	RateLimitPerMinute int
	RateLimitBurst     int

	// MaxUploadMB caps one multipart request body.
	MaxUploadMB int

	LogLevel slog.Level
}

// DevMode reports whether the relaxed authentication profile is active.
func (c *Config) DevMode() bool {
	return c.Profile == ProfileDev
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// GoogleOAuthEnabled reports whether the browser OAuth2 flow can run.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads the environment. It fails on malformed numbers, unknown
// backends, and a missing JWT secret outside the dev profile.
func Load() (*Config, error) {
	home, _ := os.UserHomeDir()

	cfg := &Config{
		Profile:                  strings.ToLower(getEnv("APP_PROFILE", ProfileDev)),
		UploadDir:                getEnv("UPLOAD_DIR", filepath.Join(home, "techblogs-uploads")),
		CourseUploadDir:          getEnv("COURSE_UPLOAD_DIR", "uploads"),
		AllowedOrigins:           splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		StoreBackend:             strings.ToLower(getEnv("STORE_BACKEND", StoreSQLite)),
		DBPath:                   getEnv("DB_PATH", "data/techblogs.db"),
		FirestoreProjectID:       os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		MediaBackend:             strings.ToLower(getEnv("MEDIA_BACKEND", MediaLocal)),
		GCSBucket:                os.Getenv("GCS_BUCKET"),
		GCSCredentialsFile:       os.Getenv("GCS_CREDENTIALS_FILE"),
		JWTSecret:                os.Getenv("JWT_SECRET"),
		GoogleClientID:           os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:       os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:        os.Getenv("GOOGLE_CALLBACK_URL"),
		FirebaseProjectID:        os.Getenv("FIREBASE_PROJECT_ID"),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 300); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 50); err != nil {
		return nil, err
	}
	if cfg.MaxUploadMB, err = getInt("MAX_UPLOAD_MB", 100); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	if cfg.GCSCredentialsFile == "" {
		cfg.GCSCredentialsFile = cfg.FirestoreCredentialsFile
	}
	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreSQLite:
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("config: FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.MediaBackend {
	case MediaLocal:
	case MediaGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("config: GCS_BUCKET is required for the gcs media backend")
		}
	default:
		return fmt.Errorf("config: unknown MEDIA_BACKEND %q", c.MediaBackend)
	}

	if c.JWTSecret == "" {
		if !c.DevMode() {
			return fmt.Errorf("config: JWT_SECRET is required outside the dev profile")
		}
		c.JWTSecret = devJWTSecret
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: rate limits must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("config: MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid integer %q", key, raw)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
