package domain

import "context"

// Identity is the session identity issued by the auth service. It lives only
// for the process session and is never persisted by the client.
type Identity struct {
	UID       string `json:"uid"`
	Anonymous bool   `json:"anonymous"`
}

// AuthStateListener receives the current identity, or nil when signed out.
type AuthStateListener func(identity *Identity)

// AuthService establishes and observes the session identity.
type AuthService interface {
	SignInAnonymously(ctx context.Context) error
	SignInWithToken(ctx context.Context, token string) error
	SignOut(ctx context.Context) error
	// OnAuthStateChanged registers a listener and returns a function removing it.
	OnAuthStateChanged(listener AuthStateListener) (unsubscribe func())
}

// SnapshotHandler receives the full current contents of a collection.
type SnapshotHandler func(messages []Message)

// Subscription is a live watch that can be released.
type Subscription interface {
	Unsubscribe() error
}

// MessageRepository reads and appends records in a message collection.
type MessageRepository interface {
	// Append writes a new record. The backend assigns its timestamp.
	Append(ctx context.Context, path string, draft Draft) error
	// Watch delivers the initial snapshot and then a fresh full snapshot after
	// every change. onError is invoked when the subscription breaks.
	Watch(ctx context.Context, path string, onSnapshot SnapshotHandler, onError func(error)) (Subscription, error)
}

// Backend is a connected handle to the managed chat backend.
type Backend interface {
	Auth() AuthService
	Messages() MessageRepository
	Close(ctx context.Context) error
}
