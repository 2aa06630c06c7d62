package sync

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func tokenAuth(r *http.Request) (string, error) {
	switch r.URL.Query().Get("token") {
	case "alice":
		return "u-alice", nil
	case "bob":
		return "u-bob", nil
	}
	return "", errors.New("bad token")
}

func startServer(t *testing.T, hub *Hub) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", WSHandler(hub, tokenAuth))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), "welcome")
	return ws
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Stats().WSClients == n }, time.Second, 10*time.Millisecond)
}

func TestPublishReachesOnlyOwner(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	url := startServer(t, hub)

	alice := dial(t, url+"?token=alice")
	bob := dial(t, url+"?token=bob")
	waitForClients(t, hub, 2)

	hub.Publish(BookmarkEvent{Type: EventBookmarkAdd, UserID: "u-alice", MangaSlug: "one-piece", Saved: true})

	var ev BookmarkEvent
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, alice.ReadJSON(&ev))
	require.Equal(t, "one-piece", ev.MangaSlug)
	require.True(t, ev.Saved)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	require.Error(t, err)
}

func TestUnauthenticatedUpgradeRejected(t *testing.T) {
	t.Parallel()

	url := startServer(t, NewHub(nil))
	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDisconnectUnregisters(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	url := startServer(t, hub)

	ws := dial(t, url+"?token=alice")
	waitForClients(t, hub, 1)
	require.Equal(t, 1, hub.Stats().Users)

	require.NoError(t, ws.Close())
	waitForClients(t, hub, 0)
	require.Equal(t, 0, hub.Stats().Users)
}

func TestNilHubPublishIsNoop(t *testing.T) {
	t.Parallel()

	var hub *Hub
	require.NotPanics(t, func() { hub.Publish(BookmarkEvent{UserID: "x"}) })
}

func TestWelcomeIsFirstWhilePublishing(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	url := startServer(t, hub)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				hub.Publish(BookmarkEvent{Type: EventBookmarkAdd, UserID: "u-alice", MangaSlug: "naruto", Saved: true})
				time.Sleep(100 * time.Microsecond)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		dial(t, url+"?token=alice")
	}
	close(stop)
	<-done
	waitForClients(t, hub, 50)
}
