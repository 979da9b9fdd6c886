package view

import (
	"bytes"
	"testing"
	"time"

	"github.com/nfrund/livechat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(sec int64) *time.Time {
	t := time.Unix(sec, 0)
	return &t
}

func rowIDs(rows []Row) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRenderSortsByTimestamp(t *testing.T) {
	s := Render(State{
		Mode: ModeReady,
		Messages: []domain.Message{
			{ID: "a", SenderID: "u1", SenderName: "Ann", Text: "first", Timestamp: at(100)},
			{ID: "b", SenderID: "u2", SenderName: "Bob", Text: "second", Timestamp: at(50)},
		},
	})

	assert.Equal(t, []string{"b", "a"}, rowIDs(s.Rows))
	assert.Equal(t, "a", s.ScrollTo)
	assert.False(t, s.Empty)
}

func TestRenderMissingTimestampsFirst(t *testing.T) {
	s := Render(State{
		Mode: ModeReady,
		Messages: []domain.Message{
			{ID: "late", SenderID: "u1", Timestamp: at(10)},
			{ID: "nil1", SenderID: "u1"},
			{ID: "nil2", SenderID: "u1"},
		},
	})

	assert.Equal(t, []string{"nil1", "nil2", "late"}, rowIDs(s.Rows))
}

func TestRenderDoesNotMutateInput(t *testing.T) {
	msgs := []domain.Message{
		{ID: "a", Timestamp: at(100)},
		{ID: "b", Timestamp: at(50)},
	}
	Render(State{Mode: ModeReady, Messages: msgs})
	assert.Equal(t, "a", msgs[0].ID)
}

func TestRenderAlignment(t *testing.T) {
	s := Render(State{
		Mode:   ModeReady,
		SelfID: "me",
		Messages: []domain.Message{
			{ID: "1", SenderID: "me", SenderName: "Ada", Text: "hi", Timestamp: at(1)},
			{ID: "2", SenderID: "other", SenderName: "Bob", Text: "yo", Timestamp: at(2)},
			{ID: "3", SenderID: "nameless", Text: "?", Timestamp: at(3)},
		},
	})

	require.Len(t, s.Rows, 3)
	assert.Equal(t, AlignRight, s.Rows[0].Align)
	assert.Equal(t, OwnLabel, s.Rows[0].Label)
	assert.True(t, s.Rows[0].Own)

	assert.Equal(t, AlignLeft, s.Rows[1].Align)
	assert.Equal(t, "Bob", s.Rows[1].Label)

	assert.Equal(t, "nameless", s.Rows[2].Label)
}

func TestRenderWithoutSelfAlignsEverythingLeft(t *testing.T) {
	s := Render(State{
		Mode:     ModeReady,
		Messages: []domain.Message{{ID: "1", SenderID: "", SenderName: "Ghost"}},
	})
	require.Len(t, s.Rows, 1)
	assert.Equal(t, AlignLeft, s.Rows[0].Align)
}

func TestRenderPendingRow(t *testing.T) {
	s := Render(State{
		Mode:     ModeReady,
		SelfID:   "me",
		Messages: []domain.Message{{ID: "p", SenderID: "me", Text: "wait", Pending: true}},
	})
	require.Len(t, s.Rows, 1)
	assert.True(t, s.Rows[0].Pending)
	assert.Equal(t, PendingLabel, s.Rows[0].Time)
}

func TestRenderEmptyReady(t *testing.T) {
	s := Render(State{Mode: ModeReady, SelfID: "me"})
	assert.True(t, s.Empty)
	assert.False(t, s.SignedOut)
	assert.Empty(t, s.Rows)
	assert.Empty(t, s.ScrollTo)
	assert.Equal(t, AppTitle, s.Title)
}

func TestRenderSignedOut(t *testing.T) {
	s := Render(State{Mode: ModeReady})
	assert.True(t, s.SignedOut)
	assert.False(t, s.Empty)

	var buf bytes.Buffer
	require.NoError(t, MainPanel(s).Render(&buf))
	assert.Contains(t, buf.String(), SignedOutHint)
	assert.NotContains(t, buf.String(), EmptyHint)

	buf.Reset()
	require.NoError(t, Identity(s).Render(&buf))
	assert.Contains(t, buf.String(), `hx-post="/signin"`)
	assert.NotContains(t, buf.String(), `hx-post="/signout"`)
}

func TestRenderModes(t *testing.T) {
	msgs := []domain.Message{{ID: "1", Timestamp: at(1)}}

	loading := Render(State{Messages: msgs, Notice: "x"})
	assert.Equal(t, ModeLoading, loading.Mode)
	assert.Empty(t, loading.Rows)
	assert.Empty(t, loading.Notice)

	failed := Render(State{Mode: ModeError, Error: "bad config", Messages: msgs})
	assert.Equal(t, ModeError, failed.Mode)
	assert.Equal(t, "bad config", failed.Error)
	assert.Empty(t, failed.Rows)
}

func TestPageHTML(t *testing.T) {
	s := Render(State{
		Mode:        ModeReady,
		SelfID:      "me",
		DisplayName: "Ada",
		Messages:    []domain.Message{{ID: "1", SenderID: "me", Text: "<b>hi</b>", Timestamp: at(1)}},
	})

	var buf bytes.Buffer
	require.NoError(t, Page(s).Render(&buf))
	html := buf.String()

	assert.Contains(t, html, `ws-connect="/ws"`)
	assert.Contains(t, html, `data-mode="ready"`)
	assert.Contains(t, html, `id="msg-1"`)
	assert.Contains(t, html, `data-scroll-to="msg-1"`)
	assert.Contains(t, html, "&lt;b&gt;hi&lt;/b&gt;")
	assert.Contains(t, html, `value="Ada"`)
	assert.Contains(t, html, `hx-post="/signout"`)
	assert.Contains(t, html, "<title>"+AppTitle+"</title>")
}

func TestFragmentsAreOutOfBand(t *testing.T) {
	s := Render(State{Mode: ModeError, Error: "missing url"})

	var buf bytes.Buffer
	require.NoError(t, Fragments(s).Render(&buf))
	html := buf.String()

	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte(`hx-swap-oob="true"`)))
	assert.Contains(t, html, `data-mode="error"`)
	assert.Contains(t, html, ErrorHeading)
	assert.Contains(t, html, "missing url")
	assert.NotContains(t, html, EmptyHint)
}

func TestMessageInputKeepsValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MessageInput("draft").Render(&buf))
	assert.Contains(t, buf.String(), `id="message-input"`)
	assert.Contains(t, buf.String(), `value="draft"`)
}
