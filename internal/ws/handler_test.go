package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiolabs/curio/internal/approval"
	"github.com/curiolabs/curio/internal/monitoring"
	"github.com/curiolabs/curio/internal/sandbox"
	"github.com/curiolabs/curio/internal/sanitize"
)

func newTestServer(t *testing.T) (*httptest.Server, *approval.Gate) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gate := approval.New(nil, approval.NewBus(), nil, approval.Config{})
	cfg := sandbox.Config{
		RenderTimeout: 2 * time.Second,
		SettleDelay:   time.Millisecond,
		ScriptTimeout: time.Second,
	}
	handler := NewHandler(cfg, sanitize.New(), gate, monitoring.NewMetrics(), nil)

	router := gin.New()
	router.GET("/stream", handler.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, gate
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// readUntil skips frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	for {
		frame := readFrame(t, conn)
		if frame["type"] == msgType {
			return frame
		}
	}
}

func TestConnectSendsSystemMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	frame := readFrame(t, conn)
	assert.Equal(t, "system", frame["type"])
}

func TestPingPong(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	frame := readUntil(t, conn, "pong")
	assert.NotNil(t, frame)
}

func TestRenderReturnsHeight(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "render", Content: "<p>hello</p>"}))
	frame := readUntil(t, conn, "render_complete")

	height, ok := frame["height"].(float64)
	require.True(t, ok)
	assert.Greater(t, height, 0.0)
}

func TestRenderInteractiveRunsScripts(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	html := `<div id="out">empty</div><script>document.getElementById("out").textContent = "filled";</script>`
	require.NoError(t, conn.WriteJSON(Message{Type: "render_interactive", Content: html}))
	frame := readUntil(t, conn, "render_complete")
	assert.Greater(t, frame["height"].(float64), 0.0)
}

func TestHeightQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "render", Content: "<p>text</p>"}))
	readUntil(t, conn, "render_complete")

	require.NoError(t, conn.WriteJSON(Message{Type: "get_height"}))
	frame := readUntil(t, conn, "height")
	assert.Greater(t, frame["height"].(float64), 0.0)
}

func TestUnknownMessageType(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "bogus"}))
	frame := readUntil(t, conn, "error")
	assert.Contains(t, frame["message"], "unknown message type")
}

func TestApprovalPendingPushed(t *testing.T) {
	srv, gate := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	req := gate.CreateRequest(context.Background(), "call-1", "sources.delete", map[string]any{"id": "x"}, "destructive")

	frame := readUntil(t, conn, "approval_pending")
	request, ok := frame["request"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, req.ID, request["id"])
	assert.Equal(t, "sources.delete", request["toolName"])
}

func TestApprovalResponseResolves(t *testing.T) {
	srv, gate := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	req := gate.CreateRequest(context.Background(), "call-1", "sources.delete", nil, "destructive")
	readUntil(t, conn, "approval_pending")

	require.NoError(t, conn.WriteJSON(Message{Type: "approval_response", ID: req.ID, Approved: true}))
	frame := readUntil(t, conn, "approval_resolved")
	assert.Equal(t, req.ID, frame["id"])

	got, err := gate.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, got.Status)
}

func TestApprovalResponseUnknownID(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "approval_response", ID: "ghost", Approved: true}))
	frame := readUntil(t, conn, "error")
	assert.NotEmpty(t, frame["message"])
}

func TestExistingPendingSentOnConnect(t *testing.T) {
	srv, gate := newTestServer(t)

	req := gate.CreateRequest(context.Background(), "call-early", "sources.delete", nil, "destructive")

	conn := dial(t, srv)
	frame := readUntil(t, conn, "approval_pending")
	request := frame["request"].(map[string]any)
	assert.Equal(t, req.ID, request["id"])
}
