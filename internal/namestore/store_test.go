package namestore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storePath = "/home/test/.config/livechat/local.json"

func TestLoadGeneratesDefaultWithoutPersisting(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(NewFileBackend(fsys, storePath))

	name := store.Load()
	assert.Regexp(t, regexp.MustCompile(`^User-[0-9a-f]{5}$`), name)
	assert.Equal(t, name, store.Name())

	exists, err := afero.Exists(fsys, storePath)
	require.NoError(t, err)
	assert.False(t, exists, "generated default must not be persisted")
}

func TestSetPersistsAndFreshLoadReturnsIt(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(NewFileBackend(fsys, storePath))
	store.Load()

	require.NoError(t, store.Set("Ada"))
	assert.Equal(t, "Ada", store.Name())

	fresh := New(NewFileBackend(fsys, storePath))
	assert.Equal(t, "Ada", fresh.Load())

	data, err := afero.ReadFile(fsys, storePath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chatUserName":"Ada"}`, string(data))
}

func TestSetKeepsOtherKeys(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, storePath, []byte(`{"theme":"dark"}`), 0o600))

	store := New(NewFileBackend(fsys, storePath))
	require.NoError(t, store.Set("Grace"))

	data, err := afero.ReadFile(fsys, storePath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark","chatUserName":"Grace"}`, string(data))
}

func TestEmptyStoredNameFallsBackToDefault(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, storePath, []byte(`{"chatUserName":""}`), 0o600))

	store := New(NewFileBackend(fsys, storePath))
	store.newSuffix = func() string { return "abcde" }
	assert.Equal(t, "User-abcde", store.Load())
}

func TestCorruptFileFallsBackToDefault(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, storePath, []byte(`not json`), 0o600))

	store := New(NewFileBackend(fsys, storePath))
	store.newSuffix = func() string { return "zzzzz" }
	assert.Equal(t, "User-zzzzz", store.Load())
}

type failingBackend struct{}

func (failingBackend) Get(string) (string, bool, error) { return "", false, nil }
func (failingBackend) Put(string, string) error         { return errors.New("disk full") }
func (failingBackend) Close() error                     { return nil }

func TestSetUpdatesMemoryEvenWhenPersistFails(t *testing.T) {
	store := New(failingBackend{})
	store.Load()

	err := store.Set("Linus")
	require.Error(t, err)
	assert.Equal(t, "Linus", store.Name())
}

func TestReload(t *testing.T) {
	fsys := afero.NewMemMapFs()
	backend := NewFileBackend(fsys, storePath)
	store := New(backend)
	store.Load()

	_, changed := store.Reload()
	assert.False(t, changed)

	require.NoError(t, backend.Put(Key, "Barbara"))
	name, changed := store.Reload()
	assert.True(t, changed)
	assert.Equal(t, "Barbara", name)

	_, changed = store.Reload()
	assert.False(t, changed)
}

// slowBackend blocks Put until release is closed.
type slowBackend struct {
	mu         sync.Mutex
	value      string
	putStarted chan struct{}
	release    chan struct{}
}

func (b *slowBackend) Get(string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.value != "", nil
}

func (b *slowBackend) Put(_ string, value string) error {
	close(b.putStarted)
	<-b.release
	b.mu.Lock()
	b.value = value
	b.mu.Unlock()
	return nil
}

func (b *slowBackend) Close() error { return nil }

func TestReloadDuringSetKeepsNewName(t *testing.T) {
	backend := &slowBackend{value: "Ada", putStarted: make(chan struct{}), release: make(chan struct{})}
	store := New(backend)
	require.Equal(t, "Ada", store.Load())

	setDone := make(chan error, 1)
	go func() { setDone <- store.Set("Grace") }()
	<-backend.putStarted

	type result struct {
		name    string
		changed bool
	}
	reloaded := make(chan result, 1)
	go func() {
		name, changed := store.Reload()
		reloaded <- result{name, changed}
	}()

	assert.Never(t, func() bool { return len(reloaded) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, "Grace", store.Name())

	close(backend.release)
	require.NoError(t, <-setDone)
	got := <-reloaded
	assert.False(t, got.changed)
	assert.Equal(t, "Grace", store.Name())
}

func TestClosedFileBackend(t *testing.T) {
	backend := NewFileBackend(afero.NewMemMapFs(), storePath)
	require.NoError(t, backend.Close())

	_, _, err := backend.Get(Key)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, backend.Put(Key, "x"), ErrClosed)
}

func TestBadgerBackend(t *testing.T) {
	backend, err := OpenBadgerInMemory()
	require.NoError(t, err)

	store := New(backend)
	store.newSuffix = func() string { return "00000" }
	assert.Equal(t, "User-00000", store.Load())

	require.NoError(t, store.Set("Ken"))
	value, ok, err := backend.Get(Key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ken", value)

	assert.Equal(t, "Ken", New(backend).Load())
	require.NoError(t, store.Close())
}

func TestBadgerBackendOnDisk(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, New(first).Set("Dennis"))
	require.NoError(t, first.Close())

	second, err := OpenBadger(dir)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, "Dennis", New(second).Load())
}

func TestWatchRequiresFileOnDisk(t *testing.T) {
	ctx := context.Background()

	mem := New(NewFileBackend(afero.NewMemMapFs(), storePath))
	assert.ErrorIs(t, mem.Watch(ctx, func(string) {}), ErrNotWatchable)

	backend, err := OpenBadgerInMemory()
	require.NoError(t, err)
	defer backend.Close()
	assert.ErrorIs(t, New(backend).Watch(ctx, func(string) {}), ErrNotWatchable)
}

func TestWatchPicksUpExternalChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "livechat", "local.json")
	fsys := afero.NewOsFs()
	store := New(NewFileBackend(fsys, path))
	store.Load()

	names := make(chan string, 4)
	require.NoError(t, store.Watch(ctx, func(name string) { names <- name }))

	other := New(NewFileBackend(fsys, path))
	require.NoError(t, other.Set("Margaret"))

	select {
	case name := <-names:
		assert.Equal(t, "Margaret", name)
		assert.Equal(t, "Margaret", store.Name())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for name change")
	}
}
