package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nfrund/livechat/internal/domain"
)

// Environment variables read by Load.
const (
	EnvBackendConfig = "LIVECHAT_BACKEND_CONFIG"
	EnvAppID         = "LIVECHAT_APP_ID"
	EnvAuthToken     = "LIVECHAT_AUTH_TOKEN"
	EnvNameStore     = "LIVECHAT_NAME_STORE"
	EnvNameStorePath = "LIVECHAT_NAME_STORE_PATH"
	EnvWebAddr       = "LIVECHAT_WEB_ADDR"
	EnvNoticeTTL     = "LIVECHAT_NOTICE_TTL"
	EnvLogFormat     = "LOG_FORMAT"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogFile       = "LOG_FILE"
)

// Name store backends.
const (
	NameStoreFile   = "file"
	NameStoreBadger = "badger"
)

const (
	defaultWebAddr   = "127.0.0.1:8088"
	defaultNoticeTTL = 5 * time.Second
	defaultLogFile   = "livechat.log"
)

// Runtime is the configuration object supplied by the hosting environment.
type Runtime struct {
	// BackendConfig is the opaque connection blob for the managed backend.
	BackendConfig json.RawMessage
	// NamespaceID scopes the message collection.
	NamespaceID string
	// InitialCredential is an optional pre-issued session token.
	InitialCredential *string
}

// Credential returns the pre-issued token, or "" when none was supplied.
func (r Runtime) Credential() string {
	if r.InitialCredential == nil {
		return ""
	}
	return strings.TrimSpace(*r.InitialCredential)
}

// Namespace returns NamespaceID with the default fallback applied.
func (r Runtime) Namespace() string {
	if r.NamespaceID == "" {
		return domain.DefaultNamespaceID
	}
	return r.NamespaceID
}

// Settings holds local, non-backend preferences.
type Settings struct {
	LogFormat     string
	LogLevel      string
	LogFile       string
	NameStore     string
	NameStorePath string
	WebAddr       string
	NoticeTTL     time.Duration
}

// Config holds all configuration for the application.
type Config struct {
	Runtime  Runtime
	Settings Settings
}

// Provider exposes configuration values to services.
type Provider interface {
	GetRuntime() Runtime
	GetNamespaceID() string
	GetLogFormat() string
	GetLogLevel() string
	GetLogFile() string
	GetNameStore() string
	GetNameStorePath() string
	GetWebAddr() string
	GetNoticeTTL() time.Duration
}

var _ Provider = (*Config)(nil)

// Load reads configuration from the environment, after loading the given
// dotenv files (".env" when none are given). Missing files are not an error.
func Load(envFiles ...string) *Config {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug("No .env file found, relying on environment variables", "files", envFiles)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() *Config {
	cfg := &Config{
		Runtime: Runtime{
			BackendConfig: json.RawMessage(os.Getenv(EnvBackendConfig)),
			NamespaceID:   os.Getenv(EnvAppID),
		},
		Settings: Settings{
			LogFormat:     getenv(EnvLogFormat, "text"),
			LogLevel:      getenv(EnvLogLevel, "info"),
			LogFile:       getenv(EnvLogFile, defaultLogFile),
			NameStore:     strings.ToLower(getenv(EnvNameStore, NameStoreFile)),
			NameStorePath: getenv(EnvNameStorePath, defaultNameStorePath()),
			WebAddr:       getenv(EnvWebAddr, defaultWebAddr),
			NoticeTTL:     defaultNoticeTTL,
		},
	}

	if token, ok := os.LookupEnv(EnvAuthToken); ok && strings.TrimSpace(token) != "" {
		cfg.Runtime.InitialCredential = &token
	}

	if raw := os.Getenv(EnvNoticeTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			slog.Warn("Ignoring invalid notice TTL", "value", raw, "error", err)
		} else {
			cfg.Settings.NoticeTTL = ttl
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultNameStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "livechat", "local.json")
}

func (c *Config) GetRuntime() Runtime         { return c.Runtime }
func (c *Config) GetNamespaceID() string      { return c.Runtime.Namespace() }
func (c *Config) GetLogFormat() string        { return c.Settings.LogFormat }
func (c *Config) GetLogLevel() string         { return c.Settings.LogLevel }
func (c *Config) GetLogFile() string          { return c.Settings.LogFile }
func (c *Config) GetNameStore() string        { return c.Settings.NameStore }
func (c *Config) GetNameStorePath() string    { return c.Settings.NameStorePath }
func (c *Config) GetWebAddr() string          { return c.Settings.WebAddr }
func (c *Config) GetNoticeTTL() time.Duration { return c.Settings.NoticeTTL }
