// Package chat holds the single chat view's state and connects the session,
// feed, composer and display-name store to the presenters.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/events"
	"github.com/nfrund/livechat/internal/pubsub"
	"github.com/nfrund/livechat/internal/view"
	"github.com/samber/lo"
)

// DefaultNoticeTTL is how long a transient notice stays on screen.
const DefaultNoticeTTL = 5 * time.Second

// Session is the identity bootstrap.
type Session interface {
	Start(ctx context.Context) error
	Close(ctx context.Context) error
	Backend() domain.Backend
	Identity() *domain.Identity
	SignOut(ctx context.Context) error
	SignIn(ctx context.Context) error
}

// Feed is the live message subscription.
type Feed interface {
	Activate(ctx context.Context, repo domain.MessageRepository, identity *domain.Identity) error
	Deactivate()
}

// Composer writes new messages.
type Composer interface {
	CanSend(text string) bool
	Send(ctx context.Context, text string) error
}

// Names is the display-name store.
type Names interface {
	Load() string
	Set(name string) error
	Name() string
}

// Dependencies are the collaborators a Controller drives.
type Dependencies struct {
	Bus       pubsub.Subscriber
	Session   Session
	Feed      Feed
	Composer  Composer
	Names     Names
	NoticeTTL time.Duration
}

// Listener receives every new screen. It is called with no controller lock
// held but must not call back into the Controller synchronously.
type Listener func(view.Screen)

// Controller owns the view state. Every change re-renders and notifies listeners in order.
type Controller struct {
	deps Dependencies

	notifyMu sync.Mutex

	mu           sync.Mutex
	state        view.State
	sessionSeq   uint64
	snapshotSeq  uint64
	listeners    map[int]Listener
	nextListener int
	noticeTimer  *time.Timer
	noticeGen    uint64
	ctx          context.Context
	cancel       context.CancelFunc
	started      bool
	closed       bool

	sends sync.WaitGroup
}

// NewController creates a Controller in loading mode.
func NewController(deps Dependencies) *Controller {
	if deps.NoticeTTL == 0 {
		deps.NoticeTTL = DefaultNoticeTTL
	}
	return &Controller{
		deps:      deps,
		state:     view.State{Mode: view.ModeLoading},
		listeners: make(map[int]Listener),
		ctx:       context.Background(),
	}
}

// Start loads the display name, subscribes to module events and begins the
// session bootstrap in the background. It returns once subscriptions are in place.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	ctx = c.ctx
	c.mu.Unlock()

	name := c.deps.Names.Load()
	c.update(func() bool {
		c.state.DisplayName = name
		return true
	})

	if err := pubsub.Subscribe(ctx, c.deps.Bus, events.Session, c.onSession); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.Session.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, c.deps.Bus, events.Snapshot, c.onSnapshot); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.Snapshot.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, c.deps.Bus, events.Notice, c.onNotice); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.Notice.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, c.deps.Bus, events.Name, c.onName); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.Name.Name(), err)
	}

	go func() {
		if err := c.deps.Session.Start(ctx); err != nil {
			// Also published on the bus. Applying it twice is a no-op.
			c.applyFailure(events.NewErrorInfo(err))
		}
	}()

	slog.InfoContext(ctx, "Chat controller started", "event", "chat_started", "version", "1.0", "name", name)
	return nil
}

func (c *Controller) onSession(ctx context.Context, ev events.SessionEvent) error {
	var activate, deactivate bool

	c.update(func() bool {
		if ev.Seq <= c.sessionSeq {
			return false
		}
		c.sessionSeq = ev.Seq

		switch ev.State {
		case events.SessionReady:
			if c.state.Mode == view.ModeError || ev.Identity == nil {
				return false
			}
			c.state.Mode = view.ModeReady
			c.state.SelfID = ev.Identity.UID
			activate = true
		case events.SessionCleared:
			c.state.SelfID = ""
			c.state.Messages = nil
			deactivate = true
		case events.SessionFailed:
			return c.applyFailureLocked(ev.Error)
		default:
			return false
		}
		return true
	})

	switch {
	case activate:
		backend := c.deps.Session.Backend()
		if backend == nil {
			return nil
		}
		if err := c.deps.Feed.Activate(ctx, backend.Messages(), c.deps.Session.Identity()); err != nil {
			slog.ErrorContext(ctx, "Failed to activate message feed", "event", "feed_activation_failure", "version", "1.0", "error", err)
		}
	case deactivate:
		c.deps.Feed.Deactivate()
	}
	return nil
}

func (c *Controller) onSnapshot(_ context.Context, ev events.SnapshotEvent) error {
	c.update(func() bool {
		if ev.Seq <= c.snapshotSeq || c.state.Mode != view.ModeReady || c.state.SelfID == "" {
			return false
		}
		c.snapshotSeq = ev.Seq
		c.state.Messages = ev.Messages
		return true
	})
	return nil
}

func (c *Controller) onNotice(_ context.Context, ev events.NoticeEvent) error {
	c.update(func() bool {
		return c.setNoticeLocked(ev.Message)
	})
	return nil
}

func (c *Controller) onName(_ context.Context, ev events.NameEvent) error {
	c.update(func() bool {
		if ev.Name == "" || ev.Name == c.state.DisplayName {
			return false
		}
		c.state.DisplayName = ev.Name
		return true
	})
	return nil
}

func (c *Controller) applyFailure(info *events.ErrorInfo) {
	c.update(func() bool {
		return c.applyFailureLocked(info)
	})
}

// applyFailureLocked sends a loading view to the error screen. Once ready,
// failures only produce a notice.
func (c *Controller) applyFailureLocked(info *events.ErrorInfo) bool {
	if info == nil {
		return false
	}
	switch c.state.Mode {
	case view.ModeLoading:
		c.state.Mode = view.ModeError
		c.state.Error = info.Message
		return true
	case view.ModeReady:
		return c.setNoticeLocked(info.Message)
	default:
		return false
	}
}

func (c *Controller) setNoticeLocked(msg string) bool {
	if c.state.Mode != view.ModeReady || msg == "" {
		return false
	}
	c.state.Notice = msg
	c.noticeGen++
	gen := c.noticeGen
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
	}
	if c.deps.NoticeTTL > 0 && !c.closed {
		c.noticeTimer = time.AfterFunc(c.deps.NoticeTTL, func() {
			c.update(func() bool {
				if c.noticeGen != gen {
					return false
				}
				c.state.Notice = ""
				return true
			})
		})
	}
	return true
}

// SetInput replaces the composer text.
func (c *Controller) SetInput(text string) {
	c.update(func() bool {
		if c.state.Input == text {
			return false
		}
		c.state.Input = text
		return true
	})
}

// Submit sends the current input. When sending is not possible it returns
// domain.ErrNotReady and leaves the input untouched. Otherwise the input is
// cleared immediately and the write runs in the background; a failed write
// surfaces as a notice and the text is not restored.
func (c *Controller) Submit() error {
	var (
		text     string
		ctx      context.Context
		accepted bool
	)

	c.update(func() bool {
		if c.closed || c.state.Mode != view.ModeReady || !c.deps.Composer.CanSend(c.state.Input) {
			return false
		}
		text = c.state.Input
		c.state.Input = ""
		ctx = c.ctx
		c.sends.Add(1)
		accepted = true
		return true
	})
	if !accepted {
		return domain.ErrNotReady
	}

	go func() {
		defer c.sends.Done()
		if err := c.deps.Composer.Send(ctx, text); err != nil {
			slog.WarnContext(ctx, "Message not sent", "event", "chat_send_failure", "version", "1.0", "error", err)
		}
	}()
	return nil
}

// SetName persists a new display name. The shown name changes even if
// persisting fails; the failure is returned and shown as a notice.
func (c *Controller) SetName(name string) error {
	err := c.deps.Names.Set(name)
	current := c.deps.Names.Name()

	c.update(func() bool {
		changed := c.state.DisplayName != current
		c.state.DisplayName = current
		if err != nil {
			changed = c.setNoticeLocked(fmt.Sprintf("Could not save display name: %v", err)) || changed
		}
		return changed
	})
	return err
}

// SignOut ends the session. Messages and the feed are released once the
// cleared identity arrives. A failure is returned and shown as a notice.
func (c *Controller) SignOut(ctx context.Context) error {
	if err := c.deps.Session.SignOut(ctx); err != nil {
		c.update(func() bool {
			return c.setNoticeLocked(fmt.Sprintf("Could not sign out: %v", err))
		})
		return err
	}
	return nil
}

// SignIn starts a new session after SignOut. Sign-in failures arrive as a
// session event and are shown as a notice.
func (c *Controller) SignIn(ctx context.Context) error {
	err := c.deps.Session.SignIn(ctx)
	if errors.Is(err, domain.ErrNotReady) {
		c.update(func() bool {
			return c.setNoticeLocked("Not connected yet")
		})
	}
	return err
}

// Screen renders the current state.
func (c *Controller) Screen() view.Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return view.Render(c.state)
}

// Subscribe registers l and calls it immediately with the current screen.
// The returned function removes it.
func (c *Controller) Subscribe(l Listener) func() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = l
	screen := view.Render(c.state)
	c.mu.Unlock()

	l(screen)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Close waits for in-flight sends until ctx is done, stops background work,
// then releases the feed and the session. Safe to call more than once.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.sends.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.WarnContext(ctx, "Closing with sends still in flight", "event", "chat_close_timeout", "version", "1.0")
	}

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	c.deps.Feed.Deactivate()
	return c.deps.Session.Close(ctx)
}

// update runs fn under the state lock and, when it reports a change,
// notifies listeners with the new screen. Notifications never interleave.
func (c *Controller) update(fn func() bool) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if !fn() {
		c.mu.Unlock()
		return
	}
	screen := view.Render(c.state)
	listeners := lo.Values(c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(screen)
	}
}
