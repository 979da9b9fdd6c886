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

// ErrLiveQueryClosed is reported to Watch callers when the backend ends the live query.
var ErrLiveQueryClosed = errors.New("live query closed by backend")

// MessageStore implements domain.MessageRepository over the messages table.
// A collection is the set of records sharing one path value.
type MessageStore struct {
	conn DBConnection
	live LiveQueryService
}

var _ domain.MessageRepository = (*MessageStore)(nil)

// NewMessageStore creates a MessageStore.
func NewMessageStore(conn DBConnection, live LiveQueryService) *MessageStore {
	return &MessageStore{conn: conn, live: live}
}

// Append creates the record with a server-assigned timestamp.
func (s *MessageStore) Append(ctx context.Context, path string, draft domain.Draft) error {
	const query = `CREATE type::thing($table, $id) SET
		path = $path,
		senderId = $senderId,
		senderName = $senderName,
		text = $text,
		timestamp = time::now()`

	params := map[string]any{
		"table":      messagesTable,
		"id":         draft.ID,
		"path":       path,
		"senderId":   draft.SenderID,
		"senderName": draft.SenderName,
		"text":       draft.Text,
	}

	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		return Execute(ctx, db, query, params)
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to append message", "event", "message_append_failure", "version", "1.0", "path", path, "error", err)
		return fmt.Errorf("append message: %w", err)
	}
	slog.DebugContext(ctx, "Message appended", "event", "message_appended", "version", "1.0", "path", path, "id", draft.ID)
	return nil
}

// Snapshot returns every record in the collection, in no particular order.
func (s *MessageStore) Snapshot(ctx context.Context, path string) ([]domain.Message, error) {
	var records []messageRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		records, err = Query[messageRecord](ctx, db, "SELECT * FROM messages WHERE path = $path", map[string]any{"path": path})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	return toMessages(records), nil
}

// Watch delivers the current snapshot and re-selects the whole collection on
// every change notification. Snapshots are delivered one at a time in the
// order they were read.
func (s *MessageStore) Watch(ctx context.Context, path string, onSnapshot domain.SnapshotHandler, onError func(error)) (domain.Subscription, error) {
	if onSnapshot == nil {
		return nil, errors.New("snapshot handler cannot be nil")
	}
	if onError == nil {
		onError = func(error) {}
	}

	var mu sync.Mutex
	refresh := func(ctx context.Context) {
		mu.Lock()
		defer mu.Unlock()
		msgs, err := s.Snapshot(ctx, path)
		if err != nil {
			onError(err)
			return
		}
		onSnapshot(msgs)
	}

	sub, err := s.live.Subscribe(ctx, messagesTable, &LiveQueryFilter{
		Where:  "path = $path",
		Params: map[string]any{"path": path},
	}, func(ctx context.Context, action LiveQueryAction, _ any) {
		if action == ActionClose {
			onError(ErrLiveQueryClosed)
			return
		}
		refresh(ctx)
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	msgs, err := s.Snapshot(ctx, path)
	if err != nil {
		mu.Unlock()
		_ = s.live.Unsubscribe(sub.ID)
		return nil, err
	}
	onSnapshot(msgs)
	mu.Unlock()

	return &watch{live: s.live, id: sub.ID}, nil
}

type watch struct {
	live LiveQueryService
	id   string
	once sync.Once
}

func (w *watch) Unsubscribe() error {
	var err error
	w.once.Do(func() {
		err = w.live.Unsubscribe(w.id)
	})
	return err
}
