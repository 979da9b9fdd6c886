// Package tui presents the chat view in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/nfrund/livechat/internal/chat"
	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/view"
	"github.com/rivo/tview"
)

const (
	pageLoading = "loading"
	pageError   = "error"
	pageChat    = "chat"

	helpText = "Commands: [blue]/name[-] NEW_NAME  [blue]/signout[-]  [blue]/signin[-]  [blue]/help[-]  [blue]/quit[-]"
)

// Controller is the chat state the terminal presents and drives.
type Controller interface {
	Screen() view.Screen
	Subscribe(l chat.Listener) func()
	SetInput(text string)
	Submit() error
	SetName(name string) error
	SignOut(ctx context.Context) error
	SignIn(ctx context.Context) error
}

// UI is the tview application showing one of the loading, error or chat pages.
// The input field owns the text being typed; the controller only mirrors it.
type UI struct {
	app  *tview.Application
	ctrl Controller
	ctx  context.Context

	// queue hands a function to the UI goroutine.
	queue func(func())

	mu      sync.Mutex
	latest  view.Screen
	pending bool

	pages   *tview.Pages
	loading *tview.TextView
	failure *tview.Modal
	header  *tview.TextView
	board   *tview.TextView
	notice  *tview.TextView
	input   *tview.InputField
}

// New builds the UI for ctrl.
func New(ctrl Controller) *UI {
	u := &UI{app: tview.NewApplication(), ctrl: ctrl, ctx: context.Background()}
	u.queue = func(f func()) { u.app.QueueUpdateDraw(f) }

	u.loading = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetText(view.LoadingText)

	u.failure = tview.NewModal().
		AddButtons([]string{"Quit"}).
		SetDoneFunc(func(int, string) { u.app.Stop() })

	u.header = tview.NewTextView().SetDynamicColors(true)

	u.board = tview.NewTextView()
	u.board.SetDynamicColors(true).SetScrollable(true).SetWrap(true)
	u.board.SetBorder(true).SetTitle(" " + view.AppTitle + " ").SetTitleAlign(tview.AlignLeft)

	u.notice = tview.NewTextView().SetDynamicColors(true)

	u.input = tview.NewInputField()
	u.input.SetPlaceholder("Send a message or type /help").
		SetPlaceholderTextColor(tcell.ColorDeepSkyBlue)
	u.input.SetLabel("> ").SetLabelColor(tcell.ColorDeepSkyBlue)
	u.input.SetFieldBackgroundColor(tcell.ColorDefault)
	u.input.SetChangedFunc(func(text string) {
		ctrl.SetInput(text)
	})
	u.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			u.handleInput(u.input.GetText())
		}
	})

	chatPage := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(u.header, 1, 0, false).
		AddItem(u.board, 0, 1, false).
		AddItem(u.notice, 1, 0, false).
		AddItem(u.input, 1, 0, true)

	u.pages = tview.NewPages().
		AddPage(pageLoading, u.loading, true, true).
		AddPage(pageError, u.failure, true, false).
		AddPage(pageChat, chatPage, true, false)

	u.app.SetRoot(u.pages, true)
	return u
}

// Run blocks until the user quits or ctx is done.
func (u *UI) Run(ctx context.Context) error {
	u.ctx = ctx
	unsubscribe := u.ctrl.Subscribe(u.schedule)
	defer unsubscribe()

	go func() {
		<-ctx.Done()
		u.app.Stop()
	}()
	return u.app.Run()
}

// schedule records screen and queues at most one draw. Screens arriving
// before that draw runs replace each other, so bursts of updates cost a
// single redraw and never fill the application's update queue.
func (u *UI) schedule(screen view.Screen) {
	u.mu.Lock()
	u.latest = screen
	if u.pending {
		u.mu.Unlock()
		return
	}
	u.pending = true
	u.mu.Unlock()

	u.queue(func() {
		u.mu.Lock()
		screen := u.latest
		u.pending = false
		u.mu.Unlock()
		u.draw(screen)
	})
}

func (u *UI) draw(screen view.Screen) {
	switch screen.Mode {
	case view.ModeError:
		u.failure.SetText(view.ErrorHeading + "\n\n" + screen.Error)
		u.pages.SwitchToPage(pageError)
		return
	case view.ModeLoading:
		u.pages.SwitchToPage(pageLoading)
		return
	}

	u.pages.SwitchToPage(pageChat)
	u.header.SetText(formatHeader(screen))
	u.notice.SetText(formatNotice(screen.Notice))

	_, _, width, _ := u.board.GetInnerRect()
	u.board.SetText(formatRows(screen, width))
	if screen.ScrollTo != "" {
		u.board.ScrollToEnd()
	}
	u.app.SetFocus(u.input)
}

func (u *UI) handleInput(text string) {
	name, arg, ok := parseCommand(text)
	if !ok {
		err := u.ctrl.Submit()
		switch {
		case err == nil:
			u.input.SetText("")
		case !errors.Is(err, domain.ErrNotReady):
			slog.Error("Submit failed", "error", err)
		}
		return
	}

	switch name {
	case "quit":
		u.app.Stop()
	case "name":
		if arg == "" {
			u.notice.SetText(formatNotice("Usage: /name NEW_NAME"))
			return
		}
		u.input.SetText("")
		if err := u.ctrl.SetName(arg); err != nil {
			slog.Warn("Failed to save display name", "error", err)
		}
	case "signout":
		u.input.SetText("")
		go u.sessionCommand("sign out", u.ctrl.SignOut)
	case "signin":
		u.input.SetText("")
		go u.sessionCommand("sign in", u.ctrl.SignIn)
	default:
		u.input.SetText("")
		u.notice.SetText(helpText)
	}
}

// sessionCommand runs a backend call off the UI goroutine. The controller
// reports the outcome through the next screen.
func (u *UI) sessionCommand(what string, fn func(context.Context) error) {
	if err := fn(u.ctx); err != nil {
		slog.Warn("Session command failed", "command", what, "error", err)
	}
}

// parseCommand splits "/cmd arg" input. Text not starting with "/" is a message.
func parseCommand(text string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(text[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

func formatHeader(screen view.Screen) string {
	header := fmt.Sprintf("[::b]%s[::-]  [grey]as[-] [blue]%s[-]", view.AppTitle, tview.Escape(screen.DisplayName))
	if screen.SignedOut {
		header += "  [grey](signed out)[-]"
	}
	return header
}

func formatNotice(msg string) string {
	if msg == "" {
		return ""
	}
	return "[yellow]" + tview.Escape(msg) + "[-]"
}
