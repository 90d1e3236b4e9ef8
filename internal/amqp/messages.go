package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// StatementProcessMessage asks a worker to process an uploaded statement.
// It carries only identifiers; the worker loads the content from storage.
type StatementProcessMessage struct {
	StatementID string    `json:"statement_id"`
	UserID      string    `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewStatementProcessMessage creates a message stamped with the current time
func NewStatementProcessMessage(statementID, userID string) *StatementProcessMessage {
	return &StatementProcessMessage{
		StatementID: statementID,
		UserID:      userID,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StatementProcessMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StatementProcessMessageFromJSON decodes a message and checks it names a statement.
func StatementProcessMessageFromJSON(data []byte) (*StatementProcessMessage, error) {
	var msg StatementProcessMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.StatementID == "" {
		return nil, errors.New("message has no statement id")
	}
	return &msg, nil
}
