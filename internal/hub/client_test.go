package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/config"
)

type wireFrame struct {
	Type         FrameType         `json:"type"`
	InvocationID string            `json:"invocationId"`
	Target       string            `json:"target"`
	Arguments    []json.RawMessage `json:"arguments"`
	Result       json.RawMessage   `json:"result"`
	Error        string            `json:"error"`
}

func newTestServer(t *testing.T, h *Hub, cfg config.HubConfig) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	endpoint := NewEndpoint(ctx, h, cfg)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := r.URL.Query().Get("user"); userID != "" {
			r = r.WithContext(authz.WithPrincipal(r.Context(), authz.Principal{
				UserID: userID,
				Role:   r.URL.Query().Get("role"),
			}))
		}
		endpoint.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hubs/notifications?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) wireFrame {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var f wireFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func writeInvocation(t *testing.T, ws *websocket.Conn, id string, target string, args ...any) {
	t.Helper()

	data, err := json.Marshal(invocation(id, target, args...))
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

var testHubConfig = config.HubConfig{InvocationRate: 100}

func TestEndpoint_RejectsAnonymous(t *testing.T) {
	srv := newTestServer(t, NewHub(zap.NewNop().Sugar()), testHubConfig)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEndpoint_Origins(t *testing.T) {
	srv := newTestServer(t, NewHub(zap.NewNop().Sugar()), config.HubConfig{
		InvocationRate: 10,
		AllowedOrigins: []string{"https://app.stockflow.test"},
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=u1&role=User"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.test"}})
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.stockflow.test"}})
	require.NoError(t, err)
	_ = ws.Close()
}

func TestEndpoint_RoundTrip(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	srv := newTestServer(t, h, testHubConfig)
	ws := dial(t, srv, "user=u1&role=Manager")

	established := readFrame(t, ws)
	assert.Equal(t, FrameEvent, established.Type)
	assert.Equal(t, EventConnectionEstablished, established.Target)
	require.Len(t, established.Arguments, 1)

	var connectionID string
	require.NoError(t, json.Unmarshal(established.Arguments[0], &connectionID))
	conn, ok := h.Registry().Get(connectionID)
	require.True(t, ok)
	assert.Equal(t, []string{"Manager", "user_u1"}, h.Registry().GroupsOf(conn.ID()))

	writeInvocation(t, ws, "1", MethodPing)
	pong := readFrame(t, ws)
	assert.Equal(t, EventPong, pong.Target)
	completion := readFrame(t, ws)
	assert.Equal(t, FrameCompletion, completion.Type)
	assert.Equal(t, "1", completion.InvocationID)
	assert.Empty(t, completion.Error)

	writeInvocation(t, ws, "2", MethodJoinGroup, "Admin")
	rejected := readFrame(t, ws)
	assert.Equal(t, "2", rejected.InvocationID)
	assert.Contains(t, rejected.Error, ErrReservedGroup.Error())

	// malformed frames are ignored and the connection stays up
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	writeInvocation(t, ws, "3", MethodJoinGroup, "dock-2")
	joined := readFrame(t, ws)
	assert.Equal(t, "3", joined.InvocationID)
	assert.Empty(t, joined.Error)
	assert.True(t, h.Registry().IsMember(connectionID, "dock-2"))

	h.SendToGroup("dock-2", EventReceiveMessage, "u9", "truck at gate")
	msg := readFrame(t, ws)
	assert.Equal(t, EventReceiveMessage, msg.Target)
	require.Len(t, msg.Arguments, 2)
	assert.JSONEq(t, `"truck at gate"`, string(msg.Arguments[1]))
}

func TestEndpoint_ForceReconnect(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	srv := newTestServer(t, h, testHubConfig)
	ws := dial(t, srv, "user=u1&role=User")
	readFrame(t, ws)

	writeInvocation(t, ws, "r", MethodForceReconnect)

	assert.Equal(t, EventForceReconnect, readFrame(t, ws).Target)
	assert.Equal(t, "r", readFrame(t, ws).InvocationID)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)

	assert.Eventually(t, func() bool { return h.Registry().Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestEndpoint_ClientCloseDisconnects(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	srv := newTestServer(t, h, testHubConfig)
	ws := dial(t, srv, "user=u1&role=Admin")
	readFrame(t, ws)
	require.Equal(t, 1, h.Registry().Count())

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	assert.Eventually(t, func() bool { return h.Registry().Count() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.Registry().GroupCount())
}

func TestEndpoint_RateLimit(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	srv := newTestServer(t, h, config.HubConfig{InvocationRate: 0.5})
	ws := dial(t, srv, "user=u1&role=User")
	readFrame(t, ws)

	// burst of one, the second immediate call is rejected
	writeInvocation(t, ws, "a", MethodJoinGroup, "g")
	assert.Empty(t, readFrame(t, ws).Error)

	writeInvocation(t, ws, "b", MethodJoinGroup, "g")
	rejected := readFrame(t, ws)
	assert.Equal(t, "b", rejected.InvocationID)
	assert.Equal(t, ErrRateLimited.Error(), rejected.Error)
}
