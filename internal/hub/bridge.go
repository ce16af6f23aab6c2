package hub

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	nc "github.com/nats-io/nats.go"

	"github.com/agentkernel/core/internal/types"
)

// NatsBridge mirrors the hub's "broadcast" topic onto a NATS subject and
// forwards inbound agent heartbeat/status traffic into this process's
// Hub, so a second process — a dashboard, a chat-ops bridge, another
// agentkerneld replica — can observe and feed hub traffic without
// holding a direct Go reference to this Hub. It is optional: a
// deployment with a single agentkerneld process has no need for it, and
// bootstrap skips it when no NATS URL is configured (see
// cmd/agentkerneld).
type NatsBridge struct {
	hub  *Hub
	conn *nc.Conn
	subs []*nc.Subscription
	stop chan struct{}
}

// NewNatsBridge dials the given NATS URL, starts forwarding every
// message sent to the hub's "broadcast" topic (RecipientType
// "broadcast") onto SubjectBroadcast, and forwards inbound
// heartbeat/status messages into the hub.
func NewNatsBridge(h *Hub, natsURL string) (*NatsBridge, error) {
	conn, err := nc.Connect(natsURL,
		nc.ReconnectWait(2*time.Second),
		nc.MaxReconnects(-1),
		nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
			if err != nil {
				log.Printf("[HUB-BRIDGE] disconnected: %v", err)
			}
		}),
		nc.ReconnectHandler(func(c *nc.Conn) {
			log.Printf("[HUB-BRIDGE] reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("hub: failed to connect to NATS: %w", err)
	}

	b := &NatsBridge{hub: h, conn: conn, stop: make(chan struct{})}

	heartbeats, err := conn.Subscribe(SubjectAllHeartbeats, b.handleHeartbeat)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("hub: failed to subscribe to heartbeats: %w", err)
	}
	statuses, err := conn.Subscribe(SubjectAllStatus, b.handleStatus)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("hub: failed to subscribe to status updates: %w", err)
	}
	b.subs = append(b.subs, heartbeats, statuses)

	go b.forwardBroadcasts(h.SubscribeTopic("topic::broadcast"))
	return b, nil
}

// forwardBroadcasts drains the hub's "broadcast" topic and publishes
// each message onto SubjectBroadcast.
func (b *NatsBridge) forwardBroadcasts(feed <-chan Message) {
	for {
		select {
		case <-b.stop:
			return
		case msg, ok := <-feed:
			if !ok {
				return
			}
			out := NatsBroadcast{
				Type:      msg.Type,
				SenderID:  msg.SenderID,
				Payload:   msg.Payload,
				Timestamp: msg.Timestamp,
			}
			data, err := json.Marshal(out)
			if err != nil {
				log.Printf("[HUB-BRIDGE] marshal failed: %v", err)
				continue
			}
			if err := b.conn.Publish(SubjectBroadcast, data); err != nil {
				log.Printf("[HUB-BRIDGE] publish failed: %v", err)
			}
		}
	}
}

// handleHeartbeat decodes an inbound heartbeat and refreshes the
// matching agent's liveness timestamp in the hub.
func (b *NatsBridge) handleHeartbeat(msg *nc.Msg) {
	var hb NatsHeartbeat
	if err := json.Unmarshal(msg.Data, &hb); err != nil {
		log.Printf("[HUB-BRIDGE] invalid heartbeat message: %v", err)
		return
	}
	if err := b.hub.Heartbeat(hb.AgentID); err != nil {
		log.Printf("[HUB-BRIDGE] heartbeat for unregistered agent %s: %v", hb.AgentID, err)
	}
}

// handleStatus decodes an inbound status update and applies it to the
// matching agent in the hub.
func (b *NatsBridge) handleStatus(msg *nc.Msg) {
	var status NatsStatus
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		log.Printf("[HUB-BRIDGE] invalid status message: %v", err)
		return
	}
	if err := b.hub.UpdateStatus(status.AgentID, types.AgentStatus(status.Status)); err != nil {
		log.Printf("[HUB-BRIDGE] status update for unregistered agent %s: %v", status.AgentID, err)
	}
}

// Close stops forwarding and releases the NATS connection.
func (b *NatsBridge) Close() {
	close(b.stop)
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.conn.Close()
}
