// Package view turns chat state into a presentation-neutral Screen.
package view

import (
	"time"

	"github.com/nfrund/livechat/internal/domain"
)

// Mode is the top-level display mode. Exactly one is active.
type Mode string

const (
	ModeLoading Mode = "loading"
	ModeError   Mode = "error"
	ModeReady   Mode = "ready"
)

// Align is the horizontal placement of a message row.
type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

// Fixed copy shared by every presenter.
const (
	AppTitle      = "Live Chat"
	LoadingText   = "Connecting to chat…"
	EmptyHint     = "No messages yet. Say hello!"
	OwnLabel      = "You"
	PendingLabel  = "sending…"
	ErrorHeading  = "Unable to start chat"
	SignedOutHint = "Signed out. Sign in to rejoin the chat."
	timeLayout    = "15:04"
)

// State is everything the renderer depends on.
type State struct {
	Mode        Mode
	Error       string
	Messages    []domain.Message
	SelfID      string
	DisplayName string
	Input       string
	Notice      string
}

// Row is one rendered message.
type Row struct {
	ID      string
	Label   string
	Text    string
	Time    string
	Align   Align
	Own     bool
	Pending bool
}

// Screen is the rendered output. Presenters draw it without further decisions.
type Screen struct {
	Mode        Mode
	Title       string
	Error       string
	SelfID      string
	DisplayName string
	Input       string
	Notice      string
	Rows        []Row
	Empty       bool
	// SignedOut is set in ready mode while there is no session identity.
	SignedOut bool
	// ScrollTo is the ID of the row presenters keep in view, or "" when there are no rows.
	ScrollTo string
}

// Render is a pure function of s. Messages are shown ascending by timestamp,
// with timestamp-less ones first, regardless of input order.
func Render(s State) Screen {
	screen := Screen{
		Mode:        s.Mode,
		Title:       AppTitle,
		SelfID:      s.SelfID,
		DisplayName: s.DisplayName,
		Input:       s.Input,
	}

	switch s.Mode {
	case ModeError:
		screen.Error = s.Error
		return screen
	case ModeReady:
	default:
		screen.Mode = ModeLoading
		return screen
	}

	screen.Notice = s.Notice
	screen.SignedOut = s.SelfID == ""
	msgs := domain.SortByTimestamp(s.Messages)
	screen.Empty = len(msgs) == 0 && !screen.SignedOut
	screen.Rows = make([]Row, 0, len(msgs))
	for _, m := range msgs {
		screen.Rows = append(screen.Rows, renderRow(m, s.SelfID))
	}
	if n := len(screen.Rows); n > 0 {
		screen.ScrollTo = screen.Rows[n-1].ID
	}
	return screen
}

func renderRow(m domain.Message, selfID string) Row {
	row := Row{
		ID:      m.ID,
		Text:    m.Text,
		Pending: m.Pending,
		Align:   AlignLeft,
		Label:   m.SenderName,
	}
	if row.Label == "" {
		row.Label = m.SenderID
	}
	if selfID != "" && m.SenderID == selfID {
		row.Own = true
		row.Align = AlignRight
		row.Label = OwnLabel
	}
	row.Time = formatTime(m.Timestamp, m.Pending)
	return row
}

func formatTime(ts *time.Time, pending bool) string {
	switch {
	case ts != nil:
		return ts.Local().Format(timeLayout)
	case pending:
		return PendingLabel
	default:
		return ""
	}
}
