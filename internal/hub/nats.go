package hub

import "time"

// Subject patterns for the hub's optional NATS bridge (see bridge.go).
// These mirror the hub's own routing rules (§4.6): per-agent subjects
// for heartbeat and status, and a single subject for the "broadcast"
// topic fan-out.
const (
	// SubjectAgentHeartbeat is the pattern for agent heartbeat messages.
	// Use fmt.Sprintf(SubjectAgentHeartbeat, agentID) for a specific agent.
	SubjectAgentHeartbeat = "agent.%s.heartbeat"

	// SubjectAgentStatus is the pattern for agent status updates.
	SubjectAgentStatus = "agent.%s.status"

	// SubjectAllHeartbeats subscribes to every agent's heartbeat.
	SubjectAllHeartbeats = "agent.*.heartbeat"

	// SubjectAllStatus subscribes to every agent's status update.
	SubjectAllStatus = "agent.*.status"

	// SubjectBroadcast carries the hub's "broadcast" topic externally.
	SubjectBroadcast = "hub.broadcast"
)

// NatsHeartbeat is the wire shape of an agent heartbeat published or
// received over the bridge.
type NatsHeartbeat struct {
	AgentID     string    `json:"agent_id"`
	Status      string    `json:"status"`
	CurrentTask string    `json:"current_task"`
	Timestamp   time.Time `json:"timestamp"`
}

// NatsStatus is the wire shape of an agent status update published or
// received over the bridge.
type NatsStatus struct {
	AgentID   string    `json:"agent_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NatsBroadcast is the wire shape of a hub broadcast-topic message
// published onto the bridge.
type NatsBroadcast struct {
	Type      string                 `json:"type"`
	SenderID  string                 `json:"sender_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
