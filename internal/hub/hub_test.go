package hub

import (
	"testing"
	"time"

	"github.com/agentkernel/core/internal/types"
)

func TestRegisterAndExchangeMessages(t *testing.T) {
	h := New()
	h.Register("agent-a", "specialist", []string{"code-review"})
	h.Register("agent-b", "specialist", []string{"code-review"})

	inbox, err := h.SubscribeAgent("agent-b")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	msg := NewMessage("task.assign", "agent-a", "specialist", map[string]interface{}{"task": "t1"}).
		ToAgent("agent-b", "specialist")
	if err := h.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-inbox:
		if got.ID != msg.ID {
			t.Fatalf("expected message id %s, got %s", msg.ID, got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSendToUnregisteredAgentFails(t *testing.T) {
	h := New()
	msg := NewMessage("task.assign", "agent-a", "specialist", nil).ToAgent("ghost", "specialist")
	if err := h.Send(msg); err == nil {
		t.Fatal("expected error sending to unregistered agent")
	}
}

func TestBroadcastReachesAllListeners(t *testing.T) {
	h := New()
	topic := h.SubscribeTopic("topic::specialist")

	msg := NewMessage("broadcast", "agent-a", "specialist", nil)
	msg.RecipientType = "specialist"
	if err := h.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-topic:
		if got.ID != msg.ID {
			t.Fatalf("expected message id %s, got %s", msg.ID, got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestGlobalBroadcastWhenNoRecipient(t *testing.T) {
	h := New()
	msg := NewMessage("announce", "agent-a", "specialist", nil)
	if err := h.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-h.global:
		if got.ID != msg.ID {
			t.Fatalf("expected message id %s, got %s", msg.ID, got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for global broadcast")
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	h := New()
	h.Register("agent-a", "specialist", nil)
	h.Unregister("agent-a")

	if _, err := h.SubscribeAgent("agent-a"); err == nil {
		t.Fatal("expected AgentNotRegistered after unregister")
	}
}

func TestHeartbeatAndStatusRequireRegistration(t *testing.T) {
	h := New()
	if err := h.Heartbeat("ghost"); err == nil {
		t.Fatal("expected error heartbeating unregistered agent")
	}
	if err := h.UpdateStatus("ghost", types.AgentBusy); err == nil {
		t.Fatal("expected error updating status of unregistered agent")
	}

	h.Register("agent-a", "specialist", nil)
	if err := h.Heartbeat("agent-a"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := h.UpdateStatus("agent-a", types.AgentBusy); err != nil {
		t.Fatalf("update status: %v", err)
	}

	info, ok := h.Info("agent-a")
	if !ok {
		t.Fatal("expected agent info present")
	}
	if info.Status != string(types.AgentBusy) {
		t.Fatalf("expected status %s, got %s", types.AgentBusy, info.Status)
	}
}

func TestBackpressureDropsAfterRetriesExhausted(t *testing.T) {
	h := New()
	h.Register("agent-a", "specialist", nil)

	inbox := h.inboxes["agent-a"]
	for i := 0; i < cap(inbox); i++ {
		inbox <- NewMessage("filler", "x", "x", nil)
	}

	msg := NewMessage("overflow", "agent-a", "specialist", nil).ToAgent("agent-a", "specialist")
	if err := h.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if h.DroppedCount() != 1 {
		t.Fatalf("expected 1 dropped message, got %d", h.DroppedCount())
	}
}
