package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyloom/backend/internal/notification/domain"
)

func startHub(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, hub *Hub, user string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Connections(user) != want {
		if time.Now().After(deadline) {
			t.Fatalf("connections for %s = %d, want %d", user, hub.Connections(user), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_PublishReachesOnlyRecipient(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	srv := startHub(t, hub)

	recipient := dial(t, srv, "user123")
	other := dial(t, srv, "someone-else")
	waitForConnections(t, hub, "user123", 1)
	waitForConnections(t, hub, "someone-else", 1)

	n := &domain.Notification{ID: "n1", FromUser: "sender1", ToUser: "user123", StoryID: "story1", Type: domain.TypeLike}
	require.NoError(t, hub.Publish(context.Background(), n))

	var got struct {
		Type string              `json:"type"`
		Data domain.Notification `json:"data"`
	}
	require.NoError(t, recipient.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, recipient.ReadJSON(&got))
	assert.Equal(t, "notification", got.Type)
	assert.Equal(t, "n1", got.Data.ID)
	assert.Equal(t, domain.TypeLike, got.Data.Type)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "non-recipient should receive nothing")
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	srv := startHub(t, hub)

	conn := dial(t, srv, "user123")
	waitForConnections(t, hub, "user123", 1)
	require.NoError(t, conn.Close())
	waitForConnections(t, hub, "user123", 0)

	assert.NoError(t, hub.Publish(context.Background(), &domain.Notification{ToUser: "user123"}))
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	srv := startHub(t, hub)

	conn := dial(t, srv, "user123")
	waitForConnections(t, hub, "user123", 1)
	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Connections("user123"))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.storyloom.io/"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.Header.Set("Origin", "https://app.storyloom.io")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
	req.Header.Del("Origin")
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "https://anything")
	assert.True(t, originChecker([]string{"*"})(req))
	assert.True(t, originChecker(nil)(req))
}
