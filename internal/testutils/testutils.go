package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/nfrund/livechat/internal/config"
	"github.com/nfrund/livechat/internal/logging"
)

// Environment variables describing the integration test database.
const (
	EnvTestSurrealURL = "LIVECHAT_TEST_SURREAL_URL"
	EnvTestSurrealNS  = "LIVECHAT_TEST_SURREAL_NS"
	EnvTestSurrealDB  = "LIVECHAT_TEST_SURREAL_DB"
	EnvTestAccess     = "LIVECHAT_TEST_ACCESS"
)

// BackendForTests loads .env.test from the project root and returns the
// integration database configuration. The test is skipped under -short or
// when no test database URL is configured.
func BackendForTests(t *testing.T) config.Backend {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	if root, ok := projectRoot(); ok {
		if env, err := godotenv.Read(filepath.Join(root, ".env.test")); err == nil {
			for key, value := range env {
				if _, set := os.LookupEnv(key); !set {
					t.Setenv(key, value)
				}
			}
		}
	}

	url := os.Getenv(EnvTestSurrealURL)
	if url == "" {
		t.Skipf("%s not set, skipping integration test", EnvTestSurrealURL)
	}

	logging.New(os.Getenv(config.EnvLogFormat), "debug", nil)

	return config.Backend{
		URL:       url,
		Namespace: getenv(EnvTestSurrealNS, "livechat_test"),
		Database:  getenv(EnvTestSurrealDB, "test"),
		Access:    getenv(EnvTestAccess, config.DefaultAccess),
	}
}

func projectRoot() (string, bool) {
	path, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			return path, true
		}
		if path == filepath.Dir(path) {
			return "", false
		}
		path = filepath.Dir(path)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
