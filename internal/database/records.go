package database

import (
	"fmt"

	"github.com/nfrund/livechat/internal/domain"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

const messagesTable = "messages"

// messageRecord is the stored shape of a chat message.
type messageRecord struct {
	ID         *models.RecordID       `json:"id,omitempty"`
	Path       string                 `json:"path"`
	SenderID   string                 `json:"senderId"`
	SenderName string                 `json:"senderName"`
	Text       string                 `json:"text"`
	Timestamp  *models.CustomDateTime `json:"timestamp,omitempty"`
}

func (r messageRecord) toDomain() domain.Message {
	msg := domain.Message{
		ID:         recordKey(r.ID),
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Text:       r.Text,
	}
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		ts := r.Timestamp.Time
		msg.Timestamp = &ts
	}
	return msg
}

func toMessages(records []messageRecord) []domain.Message {
	msgs := make([]domain.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.toDomain())
	}
	return msgs
}

// authRecord is the subset of $auth the client needs.
type authRecord struct {
	ID *models.RecordID `json:"id,omitempty"`
}

// recordKey returns the key part of a record id ("abc" for messages:abc).
func recordKey(id *models.RecordID) string {
	if id == nil || id.ID == nil {
		return ""
	}
	switch v := id.ID.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// recordString returns the full table:key form of a record id.
func recordString(id *models.RecordID) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s", id.Table, recordKey(id))
}
