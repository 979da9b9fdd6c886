package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nfrund/livechat/internal/config"
	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refusingDialer struct{ calls atomic.Int32 }

func (d *refusingDialer) Dial(context.Context, config.Backend) (domain.Backend, error) {
	d.calls.Add(1)
	return nil, errors.New("connection refused")
}

func testConfig(t *testing.T, blob string) *config.Config {
	t.Helper()
	return &config.Config{
		Runtime: config.Runtime{BackendConfig: json.RawMessage(blob), NamespaceID: "test-app"},
		Settings: config.Settings{
			NameStore:     config.NameStoreFile,
			NameStorePath: filepath.Join(t.TempDir(), "local.json"),
			NoticeTTL:     time.Second,
		},
	}
}

func TestNewWiresServices(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t, `{}`), &refusingDialer{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(ctx) })

	assert.NotNil(t, a.Bus)
	assert.NotNil(t, a.Session)
	assert.NotNil(t, a.Composer)
	assert.Equal(t, "artifacts/test-app/public/data/messages", a.Feed.Path())
}

func TestEmptyBackendConfigEndsInErrorMode(t *testing.T) {
	ctx := context.Background()
	dialer := &refusingDialer{}
	a, err := New(ctx, testConfig(t, `{}`), dialer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(ctx) })

	require.NoError(t, a.Start(ctx))
	require.Eventually(t, func() bool {
		return a.Controller.Screen().Mode == view.ModeError
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, dialer.calls.Load())
	assert.NotEmpty(t, a.Controller.Screen().DisplayName)
}

func TestDialFailureEndsInErrorMode(t *testing.T) {
	ctx := context.Background()
	blob := `{"url":"ws://127.0.0.1:1/rpc","namespace":"chat","database":"test"}`
	a, err := New(ctx, testConfig(t, blob), &refusingDialer{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(ctx) })

	require.NoError(t, a.Start(ctx))
	require.Eventually(t, func() bool {
		return a.Controller.Screen().Mode == view.ModeError
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, a.Controller.Screen().Error, "connection refused")
}

func TestOpenNames(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		cfg := testConfig(t, `{}`)
		names, err := OpenNames(cfg)
		require.NoError(t, err)
		defer names.Close()

		require.NoError(t, names.Set("Ada"))
		again, err := OpenNames(cfg)
		require.NoError(t, err)
		assert.Equal(t, "Ada", again.Load())
	})

	t.Run("badger", func(t *testing.T) {
		cfg := testConfig(t, `{}`)
		cfg.Settings.NameStore = config.NameStoreBadger
		cfg.Settings.NameStorePath = t.TempDir()

		names, err := OpenNames(cfg)
		require.NoError(t, err)
		require.NoError(t, names.Set("Grace"))
		require.NoError(t, names.Close())

		reopened, err := OpenNames(cfg)
		require.NoError(t, err)
		defer reopened.Close()
		assert.Equal(t, "Grace", reopened.Load())
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig(t, `{}`)
		cfg.Settings.NameStore = "redis"
		_, err := OpenNames(cfg)
		assert.Error(t, err)
	})
}
