package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/middleware"
	"github.com/nfrund/livechat/internal/view"
)

func (s *Server) index(c echo.Context) error {
	return s.renderer.RenderPage(c, http.StatusOK, view.Page(s.ctrl.Screen()))
}

// postMessage submits the form text and answers with the composer input:
// empty once the send is dispatched, unchanged when it was refused.
func (s *Server) postMessage(c echo.Context) error {
	logger := middleware.FromContext(c.Request().Context())

	s.ctrl.SetInput(c.FormValue("text"))
	if err := s.ctrl.Submit(); err != nil {
		if !errors.Is(err, domain.ErrNotReady) {
			return err
		}
		logger.Debug("Message not accepted", "error", err)
	}
	return s.renderer.RenderPage(c, http.StatusOK, view.MessageInput(s.ctrl.Screen().Input))
}

func (s *Server) postName(c echo.Context) error {
	logger := middleware.FromContext(c.Request().Context())

	if err := s.ctrl.SetName(c.FormValue("name")); err != nil {
		logger.Warn("Failed to save display name", "error", err)
	}
	return s.renderer.RenderPage(c, http.StatusOK, view.Identity(s.ctrl.Screen()))
}

// postSignOut ends the session. The updated screen reaches the page over the websocket.
func (s *Server) postSignOut(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.ctrl.SignOut(ctx); err != nil {
		middleware.FromContext(ctx).Warn("Sign-out failed", "error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// postSignIn starts a new session after a sign-out.
func (s *Server) postSignIn(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.ctrl.SignIn(ctx); err != nil {
		middleware.FromContext(ctx).Warn("Sign-in failed", "error", err)
	}
	return c.NoContent(http.StatusNoContent)
}
