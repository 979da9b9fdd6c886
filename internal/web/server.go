// Package web serves the chat view as a local single-page app. The page is
// rendered with gomponents and kept current over a websocket with htmx
// out-of-band swaps.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/livechat/internal/chat"
	"github.com/nfrund/livechat/internal/hub"
	"github.com/nfrund/livechat/internal/middleware"
	"github.com/nfrund/livechat/internal/rendering"
	"github.com/nfrund/livechat/internal/view"
)

const shutdownTimeout = 10 * time.Second

// Controller is the chat state the web view presents and drives.
type Controller interface {
	Screen() view.Screen
	Subscribe(l chat.Listener) func()
	SetInput(text string)
	Submit() error
	SetName(name string) error
	SignOut(ctx context.Context) error
	SignIn(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	e        *echo.Echo
	ctrl     Controller
	hub      *hub.Hub
	renderer rendering.Renderer
	sendRate float64

	startOnce sync.Once
	ctx       context.Context
}

// Option configures a Server.
type Option func(*Server)

// WithRenderer overrides the gomponents renderer.
func WithRenderer(r rendering.Renderer) Option {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithSendRate sets the per-client limit on POST /messages, in requests per second.
func WithSendRate(perSecond float64) Option {
	return func(s *Server) {
		s.sendRate = perSecond
	}
}

// New creates a Server for ctrl and registers its routes.
func New(ctrl Controller, opts ...Option) *Server {
	s := &Server{
		ctrl:     ctrl,
		hub:      hub.NewHub(),
		renderer: rendering.NewNodeRenderer(),
		sendRate: middleware.DefaultSendRate,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	s.e = e
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.e.GET("/", s.index)
	s.e.GET("/ws", s.serveWS)
	s.e.POST("/messages", s.postMessage, middleware.RateLimiter(s.sendRate))
	s.e.POST("/name", s.postName)
	s.e.POST("/signout", s.postSignOut)
	s.e.POST("/signin", s.postSignIn)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start runs the fragment hub and subscribes it to the controller until ctx is done.
func (s *Server) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx = ctx
		go s.hub.Run(ctx)
		unsubscribe := s.ctrl.Subscribe(s.broadcast)
		go func() {
			<-ctx.Done()
			unsubscribe()
		}()
	})
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Web view listening", "event", "web_listening", "version", "1.0", "addr", addr)
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) broadcast(screen view.Screen) {
	html, err := s.renderer.RenderComponent(s.ctx, view.Fragments(screen))
	if err != nil {
		slog.Error("Failed to render fragments", "error", err)
		return
	}
	s.hub.Broadcast(html)
}
