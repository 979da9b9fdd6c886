// Package composer appends new messages to the shared collection.
package composer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/events"
	"github.com/nfrund/livechat/internal/pubsub"
)

// Session exposes the bootstrap result the composer needs.
type Session interface {
	Backend() domain.Backend
	Identity() *domain.Identity
}

// NameSource provides the current display name.
type NameSource interface {
	Name() string
}

// PendingTracker shows in-flight writes before the backend confirms them.
type PendingTracker interface {
	AddPending(ctx context.Context, msg domain.Message)
	DropPending(ctx context.Context, id string)
}

// Composer writes one record per accepted send. It never retries or queues.
type Composer struct {
	session   Session
	names     NameSource
	pending   PendingTracker
	publisher pubsub.Publisher
	path      string
	newID     func() string
}

// New creates a Composer that appends to the collection at path. pending may be nil.
func New(session Session, names NameSource, pending PendingTracker, publisher pubsub.Publisher, path string) *Composer {
	return &Composer{
		session:   session,
		names:     names,
		pending:   pending,
		publisher: publisher,
		path:      path,
		newID:     uuid.NewString,
	}
}

// CanSend reports whether Send would write text.
func (c *Composer) CanSend(text string) bool {
	_, _, _, ok := c.ready(text)
	return ok
}

// Send appends text as a new message. It returns domain.ErrNotReady without
// writing when text is blank or the backend, identity or display name is
// unavailable. A failed write returns a send error and publishes a notice.
func (c *Composer) Send(ctx context.Context, text string) error {
	backend, identity, name, ok := c.ready(text)
	if !ok {
		return domain.ErrNotReady
	}

	draft := domain.Draft{
		ID:         c.newID(),
		SenderID:   identity.UID,
		SenderName: name,
		Text:       text,
	}
	if c.pending != nil {
		c.pending.AddPending(ctx, draft.Pending())
	}

	if err := backend.Messages().Append(ctx, c.path, draft); err != nil {
		if c.pending != nil {
			c.pending.DropPending(ctx, draft.ID)
		}
		sendErr := domain.NewError(domain.ErrSend, "append message", err)
		slog.ErrorContext(ctx, "Failed to send message", "event", "send_failure", "version", "1.0", "id", draft.ID, "error", err)
		if pubErr := pubsub.Publish(ctx, c.publisher, events.Notice, events.NoticeEvent{
			Kind:    domain.KindName(sendErr),
			Message: sendErr.Error(),
			At:      time.Now(),
		}); pubErr != nil {
			slog.ErrorContext(ctx, "Failed to publish send notice", "error", pubErr)
		}
		return sendErr
	}

	slog.InfoContext(ctx, "Message sent", "event", "send_success", "version", "1.0", "id", draft.ID, "uid", identity.UID)
	return nil
}

func (c *Composer) ready(text string) (domain.Backend, *domain.Identity, string, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, "", false
	}
	backend := c.session.Backend()
	identity := c.session.Identity()
	name := c.names.Name()
	if backend == nil || identity == nil || identity.UID == "" || name == "" {
		return nil, nil, "", false
	}
	return backend, identity, name, true
}
