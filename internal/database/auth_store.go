package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/livechat/internal/domain"
	"github.com/surrealdb/surrealdb.go"
)

// ErrNoAuthRecord is returned when the session carries no $auth record.
var ErrNoAuthRecord = errors.New("no authenticated record found")

// AuthStore implements domain.AuthService with SurrealDB record access.
// Anonymous sign-in is a sign-up against the configured access method;
// token sign-in authenticates the connection with a pre-issued JWT.
type AuthStore struct {
	conn   DBConnection
	ns     string
	dbName string
	access string

	mu        sync.Mutex
	current   *domain.Identity
	listeners map[int]domain.AuthStateListener
	nextID    int
}

var _ domain.AuthService = (*AuthStore)(nil)

// NewAuthStore creates an AuthStore for the given namespace, database and access method.
func NewAuthStore(conn DBConnection, ns, dbName, access string) *AuthStore {
	return &AuthStore{
		conn:      conn,
		ns:        ns,
		dbName:    dbName,
		access:    access,
		listeners: make(map[int]domain.AuthStateListener),
	}
}

// SignInAnonymously creates a fresh guest record and adopts its identity.
func (s *AuthStore) SignInAnonymously(ctx context.Context) error {
	var identity *domain.Identity
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		if _, err := db.SignUp(ctx, map[string]any{
			"ns": s.ns,
			"db": s.dbName,
			"ac": s.access,
		}); err != nil {
			return fmt.Errorf("sign up as %s: %w", s.access, err)
		}

		id, err := s.currentIdentity(ctx, db)
		if err != nil {
			return err
		}
		id.Anonymous = true
		identity = id
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "Anonymous sign-in failed", "event", "auth_anonymous_failure", "version", "1.0", "access", s.access, "error", err)
		return err
	}

	slog.InfoContext(ctx, "Signed in anonymously", "event", "auth_anonymous_success", "version", "1.0", "uid", identity.UID)
	s.setIdentity(identity)
	return nil
}

// SignInWithToken authenticates the connection with a pre-issued token.
func (s *AuthStore) SignInWithToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}

	var identity *domain.Identity
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		if err := db.Authenticate(ctx, token); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
		id, err := s.currentIdentity(ctx, db)
		if err != nil {
			return err
		}
		identity = id
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "Token sign-in failed", "event", "auth_token_failure", "version", "1.0", "error", err)
		return err
	}

	slog.InfoContext(ctx, "Signed in with token", "event", "auth_token_success", "version", "1.0", "uid", identity.UID)
	s.setIdentity(identity)
	return nil
}

// SignOut invalidates the session and notifies listeners with nil.
func (s *AuthStore) SignOut(ctx context.Context) error {
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		return db.Invalidate(ctx)
	})
	if err != nil && !errors.Is(err, ErrNotConnected) {
		return fmt.Errorf("invalidate session: %w", err)
	}
	s.setIdentity(nil)
	return nil
}

// OnAuthStateChanged registers listener. A listener registered after sign-in
// is called immediately with the current identity.
func (s *AuthStore) OnAuthStateChanged(listener domain.AuthStateListener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	current := s.current
	s.mu.Unlock()

	if current != nil {
		identity := *current
		listener(&identity)
	}

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *AuthStore) setIdentity(identity *domain.Identity) {
	s.mu.Lock()
	s.current = identity
	listeners := make([]domain.AuthStateListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		if identity == nil {
			l(nil)
			continue
		}
		copied := *identity
		l(&copied)
	}
}

func (s *AuthStore) currentIdentity(ctx context.Context, db *surrealdb.DB) (*domain.Identity, error) {
	records, err := Query[authRecord](ctx, db, "SELECT id FROM $auth", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated record: %w", err)
	}
	if len(records) == 0 || records[0].ID == nil {
		return nil, ErrNoAuthRecord
	}
	return &domain.Identity{UID: recordString(records[0].ID)}, nil
}
