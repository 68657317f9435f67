package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-chat-service/internal/config"
	"geo-chat-service/internal/logging"
	"geo-chat-service/internal/models"
	"geo-chat-service/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *Hub, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.New()
	hub := NewHub(logging.Discard())
	router := NewRouter(s, hub, nil, RouterConfig{NotifyRadiusKm: 10, DefaultRadiusKm: 5}, logging.Discard())
	handler := NewHandler(hub, router, []string{"http://localhost:5173"}, config.WSConfig{
		SendBuffer:   16,
		WriteTimeout: time.Second,
		ReadLimit:    64 * 1024,
	}, logging.Discard())

	engine := gin.New()
	engine.GET("/ws", handler.Handle)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, hub, s
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env models.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebSocketSessionLifecycle(t *testing.T) {
	srv, hub, s := newTestServer(t)

	alice := dial(t, srv, nil)
	writeEvent(t, alice, models.EventJoinLocation, map[string]any{"username": "alice", "latitude": baseLat, "longitude": baseLon})
	initialized := readEvent(t, alice)
	require.Equal(t, models.EventUserInitialized, initialized.Event)
	var aliceUser models.User
	require.NoError(t, json.Unmarshal(initialized.Data, &aliceUser))
	assert.Equal(t, models.EventUsersInRange, readEvent(t, alice).Event)
	assert.Equal(t, models.EventMessagesInRange, readEvent(t, alice).Event)

	bob := dial(t, srv, nil)
	writeEvent(t, bob, models.EventJoinLocation, map[string]any{"username": "bob", "latitude": nearLat, "longitude": baseLon})
	for i := 0; i < 3; i++ {
		readEvent(t, bob)
	}

	joined := readEvent(t, alice)
	require.Equal(t, models.EventUserJoined, joined.Event)
	var bobUser models.User
	require.NoError(t, json.Unmarshal(joined.Data, &bobUser))
	assert.Equal(t, "bob", bobUser.Username)

	writeEvent(t, bob, models.EventSendMessage, map[string]any{"content": "hi alice", "latitude": nearLat, "longitude": baseLon})
	assert.Equal(t, models.EventNewMessage, readEvent(t, bob).Event)
	msg := readEvent(t, alice)
	require.Equal(t, models.EventNewMessage, msg.Event)
	assert.Contains(t, string(msg.Data), "hi alice")

	writeEvent(t, bob, "dance", nil)
	errFrame := readEvent(t, bob)
	require.Equal(t, models.EventError, errFrame.Event)
	assert.Contains(t, string(errFrame.Data), models.CodeUnknownEvent)

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	updated := readEvent(t, alice)
	require.Equal(t, models.EventUserUpdated, updated.Event)
	var offline models.User
	require.NoError(t, json.Unmarshal(updated.Data, &offline))
	assert.Equal(t, bobUser.ID, offline.ID)
	assert.False(t, offline.IsOnline)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	stored, ok := s.GetUser(bobUser.ID)
	require.True(t, ok)
	assert.False(t, stored.IsOnline)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv, hub, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.Count())
}

func TestWebSocketAllowsListedOrigin(t *testing.T) {
	srv, hub, _ := newTestServer(t)

	header := http.Header{}
	header.Set("Origin", "http://localhost:5173")
	dial(t, srv, header)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://a.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://a.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://b.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
