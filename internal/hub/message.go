package hub

import (
	"time"

	"github.com/google/uuid"
)

// Message is the spec's Message entity (§3). When RecipientID is empty the
// message is a global broadcast.
type Message struct {
	ID              string
	Type            string
	SenderID        string
	SenderType      string
	RecipientID     string
	RecipientType   string
	Payload         map[string]interface{}
	Timestamp       time.Time
	Priority        uint8
	RequiresResponse bool
	CorrelationID   string
}

// NewMessage constructs a Message with a generated id and current timestamp.
func NewMessage(msgType, senderID, senderType string, payload map[string]interface{}) Message {
	return Message{
		ID:         uuid.New().String(),
		Type:       msgType,
		SenderID:   senderID,
		SenderType: senderType,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// ToAgent returns a copy of the message addressed to a specific recipient.
func (m Message) ToAgent(recipientID, recipientType string) Message {
	m.RecipientID = recipientID
	m.RecipientType = recipientType
	return m
}

// AgentInfo is the hub's registered view of an agent.
type AgentInfo struct {
	ID           string
	Role         string
	Capabilities []string
	Status       string
	LastHeartbeat time.Time
}
