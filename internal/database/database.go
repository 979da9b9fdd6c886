package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nfrund/livechat/internal/config"
	"github.com/nfrund/livechat/internal/domain"
)

// Backend bundles the SurrealDB-backed services behind domain.Backend.
type Backend struct {
	conn     *Connection
	live     *SurrealLiveQueryService
	auth     *AuthStore
	messages *MessageStore
}

var _ domain.Backend = (*Backend)(nil)

// Dialer opens Backends.
type Dialer struct{}

// NewDialer returns a Dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

// Dial connects to the backend described by cfg. The returned Backend has no
// session yet; use its AuthService to sign in.
func (d *Dialer) Dial(ctx context.Context, cfg config.Backend) (domain.Backend, error) {
	conn := NewConnection(cfg)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	live := NewSurrealLiveQueryService(conn)
	slog.InfoContext(ctx, "Connected to chat backend", "event", "backend_connected", "version", "1.0",
		"db_url", redactDBURL(cfg.URL),
		"namespace", conn.Namespace(),
		"database", conn.Database(),
	)
	return &Backend{
		conn:     conn,
		live:     live,
		auth:     NewAuthStore(conn, conn.Namespace(), conn.Database(), conn.Access()),
		messages: NewMessageStore(conn, live),
	}, nil
}

func (b *Backend) Auth() domain.AuthService { return b.auth }

func (b *Backend) Messages() domain.MessageRepository { return b.messages }

// Close releases live queries and the connection.
func (b *Backend) Close(ctx context.Context) error {
	b.live.Close()
	if err := b.conn.Close(ctx); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}
