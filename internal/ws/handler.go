// Package ws streams sandbox renders and approval events over WebSocket.
//
// Each connection owns its own sandboxed rendering context, created on
// upgrade and destroyed on close. Approval events from the shared bus are
// pushed to every connection; decisions flow back as approval_response
// messages.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/curiolabs/curio/internal/approval"
	"github.com/curiolabs/curio/internal/logging"
	"github.com/curiolabs/curio/internal/monitoring"
	"github.com/curiolabs/curio/internal/sandbox"
	"github.com/curiolabs/curio/internal/sanitize"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Message is an inbound WebSocket frame.
type Message struct {
	Type     string   `json:"type"`
	Content  string   `json:"content,omitempty"`
	Scripts  []string `json:"scripts,omitempty"`
	ID       string   `json:"id,omitempty"`
	Approved bool     `json:"approved"`
}

// Handler manages WebSocket connections.
type Handler struct {
	sandboxCfg sandbox.Config
	sanitizer  *sanitize.Sanitizer
	gate       *approval.Gate
	metrics    *monitoring.Metrics
	logger     *logging.Logger
}

// NewHandler creates a WebSocket handler. metrics may be nil.
func NewHandler(cfg sandbox.Config, sanitizer *sanitize.Sanitizer, gate *approval.Gate, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		sandboxCfg: cfg,
		sanitizer:  sanitizer,
		gate:       gate,
		metrics:    metrics,
		logger:     logger.WithComponent("ws"),
	}
}

// conn wraps a WebSocket connection with a write lock. gorilla/websocket
// permits only one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(data)
}

// HandleConnection handles WebSocket upgrade and messages.
func (h *Handler) HandleConnection(c *gin.Context) {
	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer socket.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	client := &conn{ws: socket}
	reqCtx := c.Request.Context()

	sb := sandbox.NewController(h.sandboxCfg, h.sanitizer, h.logger)
	defer sb.Destroy()

	if err := sb.WaitForReady(reqCtx); err != nil {
		h.sendError(client, "sandbox failed to start")
		return
	}

	h.send(client, map[string]any{
		"type":    "system",
		"message": "Connected to Curio",
	})

	// Forward approval events until the connection closes.
	if h.gate != nil {
		events, unsubscribe := h.gate.Bus().Subscribe()
		defer unsubscribe()
		done := make(chan struct{})
		defer close(done)
		go h.forwardApprovals(client, events, done)

		for _, req := range h.gate.Pending() {
			h.sendApproval(client, req)
		}
	}

	for {
		var msg Message
		if err := socket.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			break
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "render":
			h.handleRender(reqCtx, client, sb, msg, false)
		case "render_interactive":
			h.handleRender(reqCtx, client, sb, msg, true)
		case "clear":
			if err := sb.Clear(reqCtx); err != nil {
				h.sendError(client, err.Error())
			}
		case "get_height":
			h.handleHeight(reqCtx, client, sb)
		case "approval_response":
			h.handleApprovalResponse(reqCtx, client, msg)
		case "ping":
			h.send(client, map[string]any{"type": "pong"})
		default:
			h.sendError(client, "unknown message type")
		}
	}
}

func (h *Handler) handleRender(ctx context.Context, client *conn, sb *sandbox.Controller, msg Message, interactive bool) {
	if err := validateRender(msg); err != nil {
		h.sendError(client, err.Error())
		return
	}

	profile := "strict"
	render := sb.Render
	if interactive {
		profile = "interactive"
		render = sb.RenderInteractive
	}

	start := time.Now()
	height, err := render(ctx, msg.Content)
	if h.metrics != nil {
		h.metrics.RecordRender(profile, time.Since(start), height, err)
		if errors.Is(err, sandbox.ErrRenderTimeout) {
			h.metrics.RecordRenderTimeout()
		}
	}
	if err != nil {
		h.sendError(client, err.Error())
		return
	}

	h.send(client, map[string]any{
		"type":      "render_complete",
		"height":    height,
		"timestamp": time.Now().Unix(),
	})
}

func (h *Handler) handleHeight(ctx context.Context, client *conn, sb *sandbox.Controller) {
	height, err := sb.Height(ctx)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}
	h.send(client, map[string]any{
		"type":   "height",
		"height": height,
	})
}

func (h *Handler) handleApprovalResponse(ctx context.Context, client *conn, msg Message) {
	if h.gate == nil {
		h.sendError(client, "approvals unavailable")
		return
	}
	if msg.ID == "" {
		h.sendError(client, "approval id required")
		return
	}

	if err := h.gate.Respond(ctx, msg.ID, msg.Approved); err != nil {
		h.sendError(client, err.Error())
		return
	}
	if h.metrics != nil {
		outcome := "rejected"
		if msg.Approved {
			outcome = "approved"
		}
		h.metrics.RecordApproval(outcome)
		h.metrics.SetApprovalsPending(len(h.gate.Pending()))
	}
	h.send(client, map[string]any{
		"type": "approval_resolved",
		"id":   msg.ID,
	})
}

func (h *Handler) forwardApprovals(client *conn, events <-chan approval.Request, done <-chan struct{}) {
	for {
		select {
		case req, ok := <-events:
			if !ok {
				return
			}
			h.sendApproval(client, req)
		case <-done:
			return
		}
	}
}

func (h *Handler) sendApproval(client *conn, req approval.Request) {
	if !req.Terminal() && h.metrics != nil {
		h.metrics.SetApprovalsPending(len(h.gate.Pending()))
	}
	h.send(client, map[string]any{
		"type":      "approval_pending",
		"request":   req,
		"timestamp": time.Now().Unix(),
	})
}

func (h *Handler) send(client *conn, data map[string]any) {
	if err := client.send(data); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
		return
	}
	if h.metrics != nil {
		if msgType, ok := data["type"].(string); ok {
			h.metrics.RecordWSMessage("out", msgType)
		}
	}
}

func (h *Handler) sendError(client *conn, msg string) {
	h.send(client, map[string]any{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}
