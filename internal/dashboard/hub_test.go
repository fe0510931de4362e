package dashboard

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type fakeMatchInfo struct{ winner *int }

func (f fakeMatchInfo) DashboardSnapshot() Snapshot {
	return Snapshot{Rotate: "phase", Winner: f.winner}
}

func (f fakeMatchInfo) DashboardScoreboard() []byte { return []byte(`{}`) }

// TestHubPushesInitialSnapshotOnSubscribe asserts a newly subscribed
// spectator gets the current match snapshot immediately, before any
// live broadcast, instead of sitting blank until the next event.
func TestHubPushesInitialSnapshotOnSubscribe(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	go hub.Run()
	winner := 2
	hub.SetInfo(fakeMatchInfo{winner: &winner})

	r := gin.New()
	r.GET("/ws", hub.Subscribe)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading initial snapshot: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.Winner == nil || *snap.Winner != 2 {
		t.Fatalf("expected initial snapshot winner 2, got %+v", snap)
	}
}

// TestHubSubscribeWithoutInfoSkipsInitialPush asserts a Hub with no
// MatchInfo wired (SetInfo never called) just registers the spectator,
// matching the teacher's original no-initial-state behavior when there
// is nothing to report yet.
func TestHubSubscribeWithoutInfoSkipsInitialPush(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	go hub.Run()

	r := gin.New()
	r.GET("/ws", hub.Subscribe)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hub.Broadcast([]byte(`{"type":"info","msg":"hello"}`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading broadcast frame: %v", err)
	}
	if string(data) != `{"type":"info","msg":"hello"}` {
		t.Fatalf("expected the broadcast frame verbatim, got %q", data)
	}
}
