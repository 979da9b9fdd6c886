// Package session establishes the session identity with the chat backend.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nfrund/livechat/internal/config"
	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/events"
	"github.com/nfrund/livechat/internal/pubsub"
)

// Dialer opens a backend from its parsed configuration.
type Dialer interface {
	Dial(ctx context.Context, cfg config.Backend) (domain.Backend, error)
}

// Bootstrap parses the runtime configuration, connects, signs in and keeps
// the current identity. It publishes events.Session on every transition.
type Bootstrap struct {
	runtime   config.Runtime
	dialer    Dialer
	publisher pubsub.Publisher
	seq       atomic.Uint64

	mu          sync.RWMutex
	backend     domain.Backend
	identity    *domain.Identity
	unsubscribe func()
	started     bool
	closed      bool
}

// New creates a Bootstrap.
func New(runtime config.Runtime, dialer Dialer, publisher pubsub.Publisher) *Bootstrap {
	return &Bootstrap{runtime: runtime, dialer: dialer, publisher: publisher}
}

// Start runs the bootstrap once. Configuration problems fail with a
// configuration error before any network activity; dial and sign-in problems
// fail with an authentication error. Every failure is also published.
func (b *Bootstrap) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	backendCfg, err := config.ParseBackend(b.runtime.BackendConfig)
	if err != nil {
		return b.fail(ctx, err)
	}

	backend, err := b.dialer.Dial(ctx, backendCfg)
	if err != nil {
		return b.fail(ctx, domain.NewError(domain.ErrAuthentication, "connect", err))
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = backend.Close(ctx)
		return nil
	}
	b.backend = backend
	b.mu.Unlock()

	// Registered outside b.mu: the store may call the listener synchronously.
	unsubscribe := backend.Auth().OnAuthStateChanged(func(identity *domain.Identity) {
		b.onAuthState(ctx, identity)
	})
	b.mu.Lock()
	b.unsubscribe = unsubscribe
	b.mu.Unlock()

	if err := b.signIn(ctx, backend); err != nil {
		return b.fail(ctx, err)
	}
	return nil
}

// signIn redeems the pre-issued credential when there is one, otherwise it
// signs in anonymously.
func (b *Bootstrap) signIn(ctx context.Context, backend domain.Backend) error {
	if token := b.runtime.Credential(); token != "" {
		slog.InfoContext(ctx, "Redeeming pre-issued credential", "event", "session_token_signin", "version", "1.0")
		if err := backend.Auth().SignInWithToken(ctx, token); err != nil {
			return domain.NewError(domain.ErrAuthentication, "redeem credential", err)
		}
		return nil
	}

	slog.InfoContext(ctx, "Signing in anonymously", "event", "session_anonymous_signin", "version", "1.0")
	if err := backend.Auth().SignInAnonymously(ctx); err != nil {
		return domain.NewError(domain.ErrAuthentication, "anonymous sign-in", err)
	}
	return nil
}

// SignOut ends the current session. The cleared identity is published like
// any other auth-state change.
func (b *Bootstrap) SignOut(ctx context.Context) error {
	backend := b.Backend()
	if backend == nil {
		return domain.ErrNotReady
	}
	slog.InfoContext(ctx, "Signing out", "event", "session_signout", "version", "1.0")
	if err := backend.Auth().SignOut(ctx); err != nil {
		return domain.NewError(domain.ErrAuthentication, "sign out", err)
	}
	return nil
}

// SignIn starts a new session on the open connection, typically after SignOut.
// Failures are published as events.SessionFailed.
func (b *Bootstrap) SignIn(ctx context.Context) error {
	backend := b.Backend()
	if backend == nil {
		return domain.ErrNotReady
	}
	if err := b.signIn(ctx, backend); err != nil {
		return b.fail(ctx, err)
	}
	return nil
}

func (b *Bootstrap) onAuthState(ctx context.Context, identity *domain.Identity) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.identity = identity
	b.mu.Unlock()

	ev := events.SessionEvent{Seq: b.seq.Add(1), State: events.SessionCleared}
	if identity != nil {
		ev.State = events.SessionReady
		ev.Identity = identity
		slog.InfoContext(ctx, "Session identity established", "event", "session_ready", "version", "1.0", "uid", identity.UID, "anonymous", identity.Anonymous)
	} else {
		slog.InfoContext(ctx, "Session identity cleared", "event", "session_cleared", "version", "1.0")
	}
	b.publish(ctx, ev)
}

func (b *Bootstrap) fail(ctx context.Context, err error) error {
	slog.ErrorContext(ctx, "Session bootstrap failed", "event", "session_failed", "version", "1.0", "kind", domain.KindName(err), "error", err)
	b.publish(ctx, events.SessionEvent{
		Seq:   b.seq.Add(1),
		State: events.SessionFailed,
		Error: events.NewErrorInfo(err),
	})
	return err
}

func (b *Bootstrap) publish(ctx context.Context, ev events.SessionEvent) {
	if err := pubsub.Publish(ctx, b.publisher, events.Session, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish session event", "state", ev.State, "error", err)
	}
}

// Identity returns the current identity, or nil.
func (b *Bootstrap) Identity() *domain.Identity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.identity == nil {
		return nil
	}
	identity := *b.identity
	return &identity
}

// Backend returns the connected backend, or nil before a successful dial.
func (b *Bootstrap) Backend() domain.Backend {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.backend
}

// Close removes the auth listener and closes the backend. Safe to call more than once.
func (b *Bootstrap) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	unsubscribe := b.unsubscribe
	backend := b.backend
	b.unsubscribe = nil
	b.backend = nil
	b.identity = nil
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if backend != nil {
		return backend.Close(ctx)
	}
	return nil
}
