package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nfrund/livechat/internal/config"
	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/events"
	"github.com/nfrund/livechat/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBlob = `{"url":"ws://localhost:8000/rpc","namespace":"chat","database":"dev"}`

type sessionLog struct {
	mu     sync.Mutex
	events []events.SessionEvent
}

func (l *sessionLog) Publish(_ context.Context, msg pubsub.Message) error {
	var ev events.SessionEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *sessionLog) states() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.State)
	}
	return out
}

type fakeAuth struct {
	mu        sync.Mutex
	listeners map[int]domain.AuthStateListener
	next      int
	anonErr   error
	tokenErr  error
	anonCalls int
	tokens    []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{listeners: map[int]domain.AuthStateListener{}}
}

func (a *fakeAuth) notify(id *domain.Identity) {
	a.mu.Lock()
	ls := make([]domain.AuthStateListener, 0, len(a.listeners))
	for _, l := range a.listeners {
		ls = append(ls, l)
	}
	a.mu.Unlock()
	for _, l := range ls {
		l(id)
	}
}

func (a *fakeAuth) SignInAnonymously(context.Context) error {
	a.mu.Lock()
	a.anonCalls++
	err := a.anonErr
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.notify(&domain.Identity{UID: "guest:anon", Anonymous: true})
	return nil
}

func (a *fakeAuth) SignInWithToken(_ context.Context, token string) error {
	a.mu.Lock()
	a.tokens = append(a.tokens, token)
	err := a.tokenErr
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.notify(&domain.Identity{UID: "user:token"})
	return nil
}

func (a *fakeAuth) SignOut(context.Context) error {
	a.notify(nil)
	return nil
}

func (a *fakeAuth) OnAuthStateChanged(l domain.AuthStateListener) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.listeners[id] = l
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *fakeAuth) listenerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

type fakeBackend struct {
	auth   *fakeAuth
	closed int
}

func (b *fakeBackend) Auth() domain.AuthService           { return b.auth }
func (b *fakeBackend) Messages() domain.MessageRepository { return nil }
func (b *fakeBackend) Close(context.Context) error {
	b.closed++
	return nil
}

type fakeDialer struct {
	backend *fakeBackend
	err     error
	calls   int
	got     config.Backend
}

func (d *fakeDialer) Dial(_ context.Context, cfg config.Backend) (domain.Backend, error) {
	d.calls++
	d.got = cfg
	if d.err != nil {
		return nil, d.err
	}
	return d.backend, nil
}

func newFixture(blob string, token *string) (*Bootstrap, *fakeDialer, *sessionLog) {
	dialer := &fakeDialer{backend: &fakeBackend{auth: newFakeAuth()}}
	log := &sessionLog{}
	b := New(config.Runtime{BackendConfig: json.RawMessage(blob), NamespaceID: "app", InitialCredential: token}, dialer, log)
	return b, dialer, log
}

func TestAnonymousBootstrap(t *testing.T) {
	b, dialer, log := newFixture(validBlob, nil)

	require.NoError(t, b.Start(context.Background()))

	assert.Equal(t, 1, dialer.calls)
	assert.Equal(t, "guest", dialer.got.Access)
	assert.Equal(t, 1, dialer.backend.auth.anonCalls)
	assert.Equal(t, []string{events.SessionReady}, log.states())
	require.NotNil(t, b.Identity())
	assert.Equal(t, "guest:anon", b.Identity().UID)
	assert.NotNil(t, b.Backend())
	assert.Equal(t, 1, dialer.backend.auth.listenerCount())
}

func TestTokenBootstrap(t *testing.T) {
	token := "jwt-abc"
	b, dialer, log := newFixture(validBlob, &token)

	require.NoError(t, b.Start(context.Background()))

	assert.Equal(t, []string{"jwt-abc"}, dialer.backend.auth.tokens)
	assert.Zero(t, dialer.backend.auth.anonCalls)
	assert.Equal(t, []string{events.SessionReady}, log.states())
	assert.Equal(t, "user:token", b.Identity().UID)
}

func TestEmptyTokenFallsBackToAnonymous(t *testing.T) {
	empty := ""
	b, dialer, _ := newFixture(validBlob, &empty)

	require.NoError(t, b.Start(context.Background()))
	assert.Empty(t, dialer.backend.auth.tokens)
	assert.Equal(t, 1, dialer.backend.auth.anonCalls)
}

func TestEmptyConfigFailsWithoutDialing(t *testing.T) {
	for _, blob := range []string{"", "{}", "null"} {
		b, dialer, log := newFixture(blob, nil)

		err := b.Start(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.Zero(t, dialer.calls)
		assert.Equal(t, []string{events.SessionFailed}, log.states())
		assert.Nil(t, b.Identity())

		log.mu.Lock()
		require.NotNil(t, log.events[0].Error)
		assert.Equal(t, "configuration", log.events[0].Error.Kind)
		assert.True(t, log.events[0].Error.Fatal)
		log.mu.Unlock()
	}
}

func TestDialFailureIsAuthenticationError(t *testing.T) {
	b, dialer, log := newFixture(validBlob, nil)
	dialer.err = errors.New("connection refused")

	err := b.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Equal(t, []string{events.SessionFailed}, log.states())
	assert.Nil(t, b.Backend())
}

func TestCredentialRejected(t *testing.T) {
	token := "expired"
	b, dialer, log := newFixture(validBlob, &token)
	dialer.backend.auth.tokenErr = errors.New("token expired")

	err := b.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Equal(t, []string{events.SessionFailed}, log.states())
	assert.Nil(t, b.Identity())
}

func TestSignOutClearsIdentity(t *testing.T) {
	b, _, log := newFixture(validBlob, nil)
	require.NoError(t, b.Start(context.Background()))

	require.NoError(t, b.SignOut(context.Background()))

	assert.Nil(t, b.Identity())
	assert.Equal(t, []string{events.SessionReady, events.SessionCleared}, log.states())

	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Greater(t, log.events[1].Seq, log.events[0].Seq)
}

func TestSignInAfterSignOut(t *testing.T) {
	b, dialer, log := newFixture(validBlob, nil)
	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.SignOut(context.Background()))

	require.NoError(t, b.SignIn(context.Background()))

	assert.Equal(t, 2, dialer.backend.auth.anonCalls)
	require.NotNil(t, b.Identity())
	assert.Equal(t, []string{events.SessionReady, events.SessionCleared, events.SessionReady}, log.states())
}

func TestSignInFailurePublished(t *testing.T) {
	b, dialer, log := newFixture(validBlob, nil)
	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.SignOut(context.Background()))
	dialer.backend.auth.anonErr = errors.New("access denied")

	err := b.SignIn(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Equal(t, []string{events.SessionReady, events.SessionCleared, events.SessionFailed}, log.states())
}

func TestSignOutBeforeStart(t *testing.T) {
	b, _, _ := newFixture(validBlob, nil)
	assert.ErrorIs(t, b.SignOut(context.Background()), domain.ErrNotReady)
	assert.ErrorIs(t, b.SignIn(context.Background()), domain.ErrNotReady)
}

func TestStartRunsOnce(t *testing.T) {
	b, dialer, _ := newFixture(validBlob, nil)
	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	assert.Equal(t, 1, dialer.calls)
}

func TestCloseReleasesListenerAndBackend(t *testing.T) {
	b, dialer, log := newFixture(validBlob, nil)
	require.NoError(t, b.Start(context.Background()))

	require.NoError(t, b.Close(context.Background()))
	require.NoError(t, b.Close(context.Background()))

	assert.Zero(t, dialer.backend.auth.listenerCount())
	assert.Equal(t, 1, dialer.backend.closed)
	assert.Nil(t, b.Backend())

	// Late auth changes after Close are ignored.
	dialer.backend.auth.notify(nil)
	assert.Equal(t, []string{events.SessionReady}, log.states())
}
