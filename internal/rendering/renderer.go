package rendering

import (
	"bytes"
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	g "maragu.dev/gomponents"
)

// Renderer renders gomponents nodes for full pages and websocket fragments.
type Renderer interface {
	// RenderComponent renders a node to a slice of bytes. Used for htmx fragments pushed over websockets.
	RenderComponent(ctx context.Context, node g.Node) ([]byte, error)

	// RenderPage writes a full HTML response.
	RenderPage(c echo.Context, status int, node g.Node) error
}

// NodeRenderer is the gomponents implementation of Renderer.
type NodeRenderer struct{}

// NewNodeRenderer creates a new NodeRenderer instance.
func NewNodeRenderer() *NodeRenderer {
	return &NodeRenderer{}
}

// RenderComponent implements the Renderer interface.
func (r *NodeRenderer) RenderComponent(ctx context.Context, node g.Node) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := node.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render component to bytes: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPage implements the Renderer interface for full HTTP responses.
func (r *NodeRenderer) RenderPage(c echo.Context, status int, node g.Node) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)

	if err := node.Render(c.Response().Writer); err != nil {
		c.Logger().Error("Failed to stream component to response writer:", err)
		return err
	}
	return nil
}
