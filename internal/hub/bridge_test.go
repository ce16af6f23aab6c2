package hub

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	nc "github.com/nats-io/nats.go"
	natsserver "github.com/nats-io/nats-server/v2/server"
)

// startTestNatsServer boots a local embedded broker for the duration of
// one test; this is purely test scaffolding for exercising NatsBridge,
// not a reusable production wrapper.
func startTestNatsServer(t *testing.T, port int) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("create embedded NATS server: %v", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS server never became ready")
	}
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})
	return fmt.Sprintf("nats://127.0.0.1:%d", port)
}

func TestNatsBridgeForwardsBroadcastsOutbound(t *testing.T) {
	url := startTestNatsServer(t, 14310)

	h := New()
	bridge, err := NewNatsBridge(h, url)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	defer bridge.Close()

	watcher, err := nc.Connect(url)
	if err != nil {
		t.Fatalf("connect watcher: %v", err)
	}
	defer watcher.Close()

	received := make(chan NatsBroadcast, 1)
	if _, err := watcher.Subscribe(SubjectBroadcast, func(msg *nc.Msg) {
		var b NatsBroadcast
		if err := json.Unmarshal(msg.Data, &b); err == nil {
			received <- b
		}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	h.Send(NewMessage("drop.ingested", "crc", "system", map[string]interface{}{"drop_id": "d-1"}).
		ToAgent("", "broadcast"))

	select {
	case got := <-received:
		if got.Type != "drop.ingested" || got.SenderID != "crc" {
			t.Fatalf("unexpected broadcast: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast over the bridge")
	}
}

func TestNatsBridgeForwardsHeartbeatInbound(t *testing.T) {
	url := startTestNatsServer(t, 14311)

	h := New()
	h.Register("agent-a", "specialist", nil)

	bridge, err := NewNatsBridge(h, url)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	defer bridge.Close()

	publisher, err := nc.Connect(url)
	if err != nil {
		t.Fatalf("connect publisher: %v", err)
	}
	defer publisher.Close()

	before, ok := h.Info("agent-a")
	if !ok {
		t.Fatal("agent-a not registered")
	}

	hb := NatsHeartbeat{AgentID: "agent-a", Status: "Busy", CurrentTask: "reviewing", Timestamp: time.Now()}
	data, _ := json.Marshal(hb)
	if err := publisher.Publish(fmt.Sprintf(SubjectAgentHeartbeat, "agent-a"), data); err != nil {
		t.Fatalf("publish heartbeat: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		after, _ := h.Info("agent-a")
		if after.LastHeartbeat.After(before.LastHeartbeat) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for inbound heartbeat to update the hub")
}
