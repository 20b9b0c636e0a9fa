package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/monitoring"
)

var _ bookmark.Publisher = (*Hub)(nil)

func setupHub(t *testing.T) (*Hub, *monitoring.Metrics, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := monitoring.NewMetrics()
	hub := NewHub(m, nil)

	router := gin.New()
	router.GET("/stream", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return hub, m, "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

func TestWelcomeAndPing(t *testing.T) {
	hub, _, url := setupHub(t)
	conn := dial(t, url)

	welcome := readMessage(t, conn)
	assert.Equal(t, "system", welcome["type"])
	assert.Equal(t, 1, hub.Clients())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", readMessage(t, conn)["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat"}`)))
	reply := readMessage(t, conn)
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "unknown message type", reply["message"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, "error", readMessage(t, conn)["type"])
}

func TestPublishFansOut(t *testing.T) {
	hub, m, url := setupHub(t)
	a := dial(t, url)
	b := dial(t, url)
	readMessage(t, a)
	readMessage(t, b)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WSConnections))

	bm := bookmark.Bookmark{ID: "bm_1", URL: "https://go.dev", CreatedAt: time.Now().UTC()}
	hub.Publish(bookmark.Event{Type: bookmark.EventCreated, Bookmark: &bm, At: time.Now().UTC()})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, "bookmark.created", msg["type"])
		assert.Equal(t, "https://go.dev", msg["bookmark"].(map[string]any)["url"])
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WSMessages))
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, m, url := setupHub(t)
	conn := dial(t, url)
	readMessage(t, conn)
	require.Equal(t, 1, hub.Clients())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WSConnections))

	// publishing with nobody listening is a no-op
	hub.Publish(bookmark.Event{Type: bookmark.EventDeleted, ID: "bm_1"})
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	hub, _, url := setupHub(t)
	conn := dial(t, url)
	readMessage(t, conn)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
