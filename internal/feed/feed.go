// Package feed keeps the live, client-sorted view of the shared message collection.
package feed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/events"
	"github.com/nfrund/livechat/internal/pubsub"
	"github.com/samber/lo"
)

// Feed owns at most one live subscription to the message collection. Every
// change publishes the full collection merged with local pending writes,
// sorted by timestamp with pending (timestamp-less) entries first.
type Feed struct {
	publisher pubsub.Publisher
	path      string

	mu         sync.Mutex
	sub        domain.Subscription
	generation uint64
	confirmed  []domain.Message
	pending    []domain.Message
	seq        uint64
}

// New creates an inactive feed for the namespace's collection.
func New(publisher pubsub.Publisher, namespaceID string) *Feed {
	return &Feed{
		publisher: publisher,
		path:      domain.CollectionPath(namespaceID),
	}
}

// Path returns the watched collection path. Writers append to the same path.
func (f *Feed) Path() string {
	return f.path
}

// Activate replaces any current subscription with a watch on repo. It does
// nothing unless both repo and identity are present.
func (f *Feed) Activate(ctx context.Context, repo domain.MessageRepository, identity *domain.Identity) error {
	if repo == nil || identity == nil {
		return nil
	}
	f.Deactivate()

	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.mu.Unlock()

	sub, err := repo.Watch(ctx, f.path,
		func(msgs []domain.Message) { f.onSnapshot(ctx, gen, msgs) },
		func(err error) { f.onError(ctx, gen, err) },
	)
	if err != nil {
		feedErr := domain.NewError(domain.ErrFeed, "subscribe", err)
		f.onError(ctx, gen, err)
		return feedErr
	}

	f.mu.Lock()
	if f.generation != gen {
		f.mu.Unlock()
		_ = sub.Unsubscribe()
		return nil
	}
	f.sub = sub
	f.mu.Unlock()

	slog.InfoContext(ctx, "Message feed active", "event", "feed_activated", "version", "1.0", "path", f.path, "uid", identity.UID)
	return nil
}

// Deactivate tears down the subscription and forgets its messages, pending
// writes included. Snapshots already in flight for it are ignored.
func (f *Feed) Deactivate() {
	f.mu.Lock()
	sub := f.sub
	f.sub = nil
	f.generation++
	f.confirmed = nil
	f.pending = nil
	f.mu.Unlock()

	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		slog.Warn("Failed to release message subscription", "event", "feed_unsubscribe_failure", "version", "1.0", "error", err)
	}
}

// AddPending shows msg until a snapshot containing its ID arrives or DropPending is called.
func (f *Feed) AddPending(ctx context.Context, msg domain.Message) {
	msg.Pending = true
	msg.Timestamp = nil

	f.mu.Lock()
	f.pending = append(f.pending, msg)
	ev := f.nextSnapshotLocked()
	f.mu.Unlock()

	f.publish(ctx, ev)
}

// DropPending removes a pending message, e.g. after its write failed.
func (f *Feed) DropPending(ctx context.Context, id string) {
	f.mu.Lock()
	before := len(f.pending)
	f.pending = lo.Reject(f.pending, func(m domain.Message, _ int) bool { return m.ID == id })
	if len(f.pending) == before {
		f.mu.Unlock()
		return
	}
	ev := f.nextSnapshotLocked()
	f.mu.Unlock()

	f.publish(ctx, ev)
}

func (f *Feed) onSnapshot(ctx context.Context, gen uint64, msgs []domain.Message) {
	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		return
	}
	f.confirmed = slices.Clone(msgs)
	confirmedIDs := lo.SliceToMap(f.confirmed, func(m domain.Message) (string, struct{}) { return m.ID, struct{}{} })
	f.pending = lo.Reject(f.pending, func(m domain.Message, _ int) bool {
		_, ok := confirmedIDs[m.ID]
		return ok
	})
	ev := f.nextSnapshotLocked()
	f.mu.Unlock()

	slog.DebugContext(ctx, "Message snapshot received", "event", "feed_snapshot", "version", "1.0", "count", len(msgs), "seq", ev.Seq)
	f.publish(ctx, ev)
}

func (f *Feed) onError(ctx context.Context, gen uint64, err error) {
	f.mu.Lock()
	stale := gen != f.generation
	f.mu.Unlock()
	if stale {
		return
	}

	feedErr := domain.NewError(domain.ErrFeed, "watch messages", err)
	slog.ErrorContext(ctx, "Message subscription failed", "event", "feed_failure", "version", "1.0", "path", f.path, "error", err)
	if pubErr := pubsub.Publish(ctx, f.publisher, events.Notice, events.NoticeEvent{
		Kind:    domain.KindName(feedErr),
		Message: feedErr.Error(),
		At:      time.Now(),
	}); pubErr != nil {
		slog.ErrorContext(ctx, "Failed to publish feed notice", "error", pubErr)
	}
}

func (f *Feed) nextSnapshotLocked() events.SnapshotEvent {
	f.seq++
	return events.SnapshotEvent{Seq: f.seq, Messages: f.mergedLocked()}
}

func (f *Feed) mergedLocked() []domain.Message {
	merged := make([]domain.Message, 0, len(f.pending)+len(f.confirmed))
	merged = append(merged, f.pending...)
	merged = append(merged, f.confirmed...)
	return domain.SortByTimestamp(merged)
}

func (f *Feed) publish(ctx context.Context, ev events.SnapshotEvent) {
	if err := pubsub.Publish(ctx, f.publisher, events.Snapshot, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish snapshot", "event", "feed_publish_failure", "version", "1.0", "seq", ev.Seq, "error", err)
	}
}
