// Package events defines the typed topics exchanged on the in-process bus.
package events

import (
	"time"

	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/pubsub"
)

// Session states carried by SessionEvent.
const (
	SessionReady   = "ready"
	SessionCleared = "cleared"
	SessionFailed  = "failed"
)

// ErrorInfo is the serialisable form of a classified error.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// NewErrorInfo describes err for the bus.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{
		Kind:    domain.KindName(err),
		Message: err.Error(),
		Fatal:   domain.IsFatal(err),
	}
}

// SessionEvent reports identity bootstrap progress.
type SessionEvent struct {
	Seq      uint64           `json:"seq"`
	State    string           `json:"state"`
	Identity *domain.Identity `json:"identity,omitempty"`
	Error    *ErrorInfo       `json:"error,omitempty"`
}

// SnapshotEvent carries the full, sorted message list.
type SnapshotEvent struct {
	Seq      uint64           `json:"seq"`
	Messages []domain.Message `json:"messages"`
}

// NoticeEvent is a transient, non-fatal problem to show the user.
type NoticeEvent struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// NameEvent reports a display name changed outside this process.
type NameEvent struct {
	Name string `json:"name"`
}

var (
	Session  = pubsub.NewEvent[SessionEvent]("session.state")
	Snapshot = pubsub.NewEvent[SnapshotEvent]("feed.snapshot")
	Notice   = pubsub.NewEvent[NoticeEvent]("chat.notice")
	Name     = pubsub.NewEvent[NameEvent]("name.changed")
)
