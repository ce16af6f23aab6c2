package controlsurface

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentkernel/core/internal/hub"
)

func TestEventStreamBroadcastsToConnectedClient(t *testing.T) {
	es := NewEventStream()
	srv := httptest.NewServer(es)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for es.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if es.ClientCount() != 1 {
		t.Fatalf("expected 1 registered client, got %d", es.ClientCount())
	}

	es.Broadcast(hub.NewMessage("TaskAssignment", "scheduler", "scheduler", map[string]interface{}{"task_id": "t-1"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "TaskAssignment") {
		t.Fatalf("expected broadcast message to contain event type, got %s", data)
	}
}

func TestEventStreamPipeDrainsChannelWithNoClients(t *testing.T) {
	es := NewEventStream()
	ch := make(chan hub.Message, 1)
	es.Pipe(ch)
	ch <- hub.NewMessage("Heartbeat", "agent-1", "worker", nil)
	close(ch)
	// Pipe drains asynchronously; give it a moment, then just assert no panic
	// and the stream remains usable (no direct observable effect with zero
	// clients connected).
	time.Sleep(10 * time.Millisecond)
	if es.ClientCount() != 0 {
		t.Fatalf("expected no clients, got %d", es.ClientCount())
	}
}
