// Package hub implements the Communication Hub (C8): typed message
// envelopes, per-agent and topic broadcast channels, and heartbeats.
//
// Delivery is lossy by design: a slow subscriber that does not keep its
// channel drained may miss messages after a bounded number of backpressure
// retries (mirrors the bus's retry-then-drop policy, grounded on the
// per-agent/global broadcast-channel design of the communication hub
// this was adapted from).
package hub

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentkernel/core/internal/types"
)

const (
	agentChannelCapacity = 64
	globalChannelCapacity = 128
	topicChannelCapacity = 64

	maxBackpressureRetries = 3
	backpressureRetryDelay = 10 * time.Millisecond
)

// Handle is returned from Register and lets a caller observe its own inbox.
type Handle struct {
	AgentID string
	Inbox   <-chan Message
}

// Hub is the process-wide, concurrency-safe communication hub.
type Hub struct {
	mu      sync.RWMutex
	agents  map[string]*AgentInfo
	inboxes map[string]chan Message
	global  chan Message
	topics  map[string]chan Message

	dropped uint64
}

// New constructs an empty Hub.
func New() *Hub {
	return &Hub{
		agents:  make(map[string]*AgentInfo),
		inboxes: make(map[string]chan Message),
		global:  make(chan Message, globalChannelCapacity),
		topics:  make(map[string]chan Message),
	}
}

// Register allocates a per-agent inbox (if one doesn't already exist) and
// records the agent's info.
func (h *Hub) Register(agentID, role string, capabilities []string) Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.inboxes[agentID]
	if !ok {
		ch = make(chan Message, agentChannelCapacity)
		h.inboxes[agentID] = ch
	}
	h.agents[agentID] = &AgentInfo{
		ID:            agentID,
		Role:          role,
		Capabilities:  capabilities,
		Status:        string(types.AgentOnline),
		LastHeartbeat: time.Now(),
	}
	return Handle{AgentID: agentID, Inbox: ch}
}

// Unregister removes an agent's state and closes its channel.
func (h *Hub) Unregister(agentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.inboxes[agentID]; ok {
		close(ch)
		delete(h.inboxes, agentID)
	}
	delete(h.agents, agentID)
}

// SubscribeAgent returns the channel for a registered agent, or
// AgentNotRegistered if it has none.
func (h *Hub) SubscribeAgent(agentID string) (<-chan Message, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.inboxes[agentID]
	if !ok {
		return nil, types.NewError(types.KindIntegrity, "hub.SubscribeAgent", fmt.Errorf("AgentNotRegistered"))
	}
	return ch, nil
}

// SubscribeTopic lazily allocates and returns a topic channel.
func (h *Hub) SubscribeTopic(topic string) <-chan Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.topics[topic]
	if !ok {
		ch = make(chan Message, topicChannelCapacity)
		h.topics[topic] = ch
	}
	return ch
}

// Send delivers a message per the spec's routing rules (§4.6): to
// RecipientID if set, else to the global channel; additionally to
// "topic::<RecipientType>" when RecipientType is set.
func (h *Hub) Send(msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.RecipientID != "" {
		ch, ok := h.inboxes[msg.RecipientID]
		if !ok {
			return types.NewError(types.KindIntegrity, "hub.Send", fmt.Errorf("AgentNotRegistered"))
		}
		h.sendWithBackpressure(ch, msg, "agent:"+msg.RecipientID)
	} else {
		h.sendWithBackpressure(h.global, msg, "global")
	}

	if msg.RecipientType != "" {
		topic := "topic::" + msg.RecipientType
		if ch, ok := h.topics[topic]; ok {
			h.sendWithBackpressure(ch, msg, topic)
		}
	}
	return nil
}

// sendWithBackpressure attempts a non-blocking send, then retries a few
// times before logging and dropping. Callers hold h.mu for read; channel
// sends never require the hub lock.
func (h *Hub) sendWithBackpressure(ch chan Message, msg Message, dest string) {
	select {
	case ch <- msg:
		return
	default:
	}

	for retry := 1; retry <= maxBackpressureRetries; retry++ {
		time.Sleep(backpressureRetryDelay)
		select {
		case ch <- msg:
			log.Printf("[HUB] message delivered after %d retry(ies): dest=%s id=%s", retry, dest, msg.ID)
			return
		default:
		}
	}

	dropped := atomic.AddUint64(&h.dropped, 1)
	log.Printf("[HUB] dropped message after %d retries (channel full): dest=%s id=%s (total dropped=%d)",
		maxBackpressureRetries, dest, msg.ID, dropped)
}

// DroppedCount reports the total number of messages dropped to backpressure.
func (h *Hub) DroppedCount() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

// Heartbeat refreshes an agent's liveness timestamp.
func (h *Hub) Heartbeat(agentID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.agents[agentID]
	if !ok {
		return types.NewError(types.KindIntegrity, "hub.Heartbeat", fmt.Errorf("AgentNotRegistered"))
	}
	info.LastHeartbeat = time.Now()
	return nil
}

// UpdateStatus mutates an agent's reported status.
func (h *Hub) UpdateStatus(agentID string, status types.AgentStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.agents[agentID]
	if !ok {
		return types.NewError(types.KindIntegrity, "hub.UpdateStatus", fmt.Errorf("AgentNotRegistered"))
	}
	info.Status = string(status)
	return nil
}

// Info returns the registered AgentInfo for an agent.
func (h *Hub) Info(agentID string) (AgentInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info, ok := h.agents[agentID]
	if !ok {
		return AgentInfo{}, false
	}
	return *info, true
}
