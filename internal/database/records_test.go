package database

import (
	"testing"
	"time"

	"github.com/nfrund/livechat/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestMessageRecordToDomain(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := surrealmodels.NewRecordID("messages", "abc")

	msg := messageRecord{
		ID:         &id,
		Path:       "artifacts/app/public/data/messages",
		SenderID:   "guest:1",
		SenderName: "Ada",
		Text:       "hello",
		Timestamp:  testutils.NewTestDateTime(ts),
	}.toDomain()

	assert.Equal(t, "abc", msg.ID)
	assert.Equal(t, "guest:1", msg.SenderID)
	assert.Equal(t, "Ada", msg.SenderName)
	assert.Equal(t, "hello", msg.Text)
	require.NotNil(t, msg.Timestamp)
	assert.True(t, ts.Equal(*msg.Timestamp))
	assert.False(t, msg.Pending)
}

func TestMessageRecordWithoutTimestamp(t *testing.T) {
	msg := messageRecord{ID: testutils.NewTestRecordID("messages"), Text: "x"}.toDomain()
	assert.Nil(t, msg.Timestamp)
	assert.NotEmpty(t, msg.ID)

	zero := messageRecord{Timestamp: &surrealmodels.CustomDateTime{}}.toDomain()
	assert.Nil(t, zero.Timestamp)
}

func TestRecordKeys(t *testing.T) {
	id := surrealmodels.NewRecordID("guest", "k1")
	assert.Equal(t, "k1", recordKey(&id))
	assert.Equal(t, "guest:k1", recordString(&id))

	numeric := surrealmodels.NewRecordID("guest", 42)
	assert.Equal(t, "42", recordKey(&numeric))

	assert.Empty(t, recordKey(nil))
	assert.Empty(t, recordString(nil))
}

func TestToMessagesKeepsOrder(t *testing.T) {
	a := surrealmodels.NewRecordID("messages", "a")
	b := surrealmodels.NewRecordID("messages", "b")
	msgs := toMessages([]messageRecord{{ID: &a}, {ID: &b}})
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].ID)
	assert.Equal(t, "b", msgs[1].ID)
}
