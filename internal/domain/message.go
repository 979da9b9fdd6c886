package domain

import (
	"fmt"
	"slices"
	"time"
)

// DefaultNamespaceID is used when the host environment does not provide one.
const DefaultNamespaceID = "default-app-id"

// Message is one chat record as seen by the client.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Text       string     `json:"text"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Pending    bool       `json:"pending,omitempty"`
}

// Draft is the client-controlled part of a new message. The timestamp is
// always assigned by the backend when it accepts the write.
type Draft struct {
	ID         string
	SenderID   string
	SenderName string
	Text       string
}

// Pending returns the local, unconfirmed copy of the draft.
func (d Draft) Pending() Message {
	return Message{
		ID:         d.ID,
		SenderID:   d.SenderID,
		SenderName: d.SenderName,
		Text:       d.Text,
		Pending:    true,
	}
}

// CollectionPath returns the path of the shared message collection for a namespace.
func CollectionPath(namespaceID string) string {
	if namespaceID == "" {
		namespaceID = DefaultNamespaceID
	}
	return fmt.Sprintf("artifacts/%s/public/data/messages", namespaceID)
}

// SortByTimestamp returns a copy of msgs ordered ascending by Timestamp.
// A nil timestamp sorts before every real one; equal keys keep their input order.
func SortByTimestamp(msgs []Message) []Message {
	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, compareTimestamp)
	return sorted
}

func compareTimestamp(a, b Message) int {
	switch {
	case a.Timestamp == nil && b.Timestamp == nil:
		return 0
	case a.Timestamp == nil:
		return -1
	case b.Timestamp == nil:
		return 1
	default:
		return a.Timestamp.Compare(*b.Timestamp)
	}
}
