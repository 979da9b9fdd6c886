package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/nfrund/livechat/internal/config"
	"github.com/surrealdb/surrealdb.go"
)

// ErrNotConnected is returned when an operation needs a live connection and there is none.
var ErrNotConnected = errors.New("database not connected")

// DBConnection is the connection contract shared by the stores and the live query service.
type DBConnection interface {
	DB() (*surrealdb.DB, error)
	WithConnection(ctx context.Context, fn func(*surrealdb.DB) error) error
	Close(ctx context.Context) error
}

// Connection manages a single SurrealDB connection. Failed operations are
// reported to the caller as-is; the connection never reconnects or retries.
type Connection struct { // Implements DBConnection
	cfg     config.Backend
	conn    *surrealdb.DB
	mu      sync.RWMutex
	healthy bool
	closed  bool
}

var _ DBConnection = (*Connection)(nil)

// NewConnection creates an unconnected handle for the given backend.
func NewConnection(cfg config.Backend) *Connection {
	return &Connection{cfg: cfg}
}

// Connect dials the endpoint and selects the configured namespace/database.
// It does not authenticate; sessions are established by the AuthStore.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	if c.closed {
		return ErrNotConnected
	}

	slog.DebugContext(ctx, "Attempting to connect to database", "event", "db_connect_attempt", "version", "1.0", "db_url", redactDBURL(c.cfg.URL))

	conn, err := surrealdb.FromEndpointURLString(ctx, c.cfg.URL)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create database connection", "event", "db_connect_failure", "version", "1.0",
			"db_url", redactDBURL(c.cfg.URL),
			"error", err,
		)
		return fmt.Errorf("failed to connect to database at %s: %w", redactDBURL(c.cfg.URL), err)
	}

	if err = conn.Use(ctx, c.cfg.Namespace, c.cfg.Database); err != nil {
		_ = conn.Close(ctx)
		slog.ErrorContext(ctx, "Failed to use namespace/database", "event", "db_namespace_failure", "version", "1.0",
			"db_url", redactDBURL(c.cfg.URL),
			"namespace", c.cfg.Namespace,
			"database", c.cfg.Database,
			"error", err,
		)
		return fmt.Errorf("failed to use namespace/db: %w", err)
	}

	c.conn = conn
	c.healthy = true
	slog.DebugContext(ctx, "Database connection established", "event", "db_connect_success", "version", "1.0",
		"db_url", redactDBURL(c.cfg.URL),
		"namespace", c.cfg.Namespace,
		"database", c.cfg.Database,
	)
	return nil
}

// WithConnection runs fn against the current connection.
func (c *Connection) WithConnection(ctx context.Context, fn func(*surrealdb.DB) error) error {
	db, err := c.DB()
	if err != nil {
		return err
	}
	return fn(db)
}

// DB returns the underlying connection, or ErrNotConnected.
func (c *Connection) DB() (*surrealdb.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || !c.healthy {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// Close shuts the connection down. Calling it more than once is safe.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.healthy = false
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close(ctx)
}

// Namespace returns the selected namespace.
func (c *Connection) Namespace() string { return c.cfg.Namespace }

// Database returns the selected database.
func (c *Connection) Database() string { return c.cfg.Database }

// Access returns the record access method used for sign-up.
func (c *Connection) Access() string { return c.cfg.Access }

// redactDBURL returns dbURL with any password replaced, for logging.
func redactDBURL(dbURL string) string {
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	return parsedURL.Redacted()
}
