package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"myfinance/internal/core"
)

var errIncompleteMessage = errors.New("message has no op or transaction id")

// TransactionEventMessage is the wire form of a ledger mutation. The worker
// acts on the embedded transaction directly; nothing is fetched back.
type TransactionEventMessage struct {
	core.TransactionEvent
	PublishedAt time.Time `json:"published_at"`
}

// NewTransactionEventMessage wraps event for publishing
func NewTransactionEventMessage(event core.TransactionEvent) *TransactionEventMessage {
	return &TransactionEventMessage{
		TransactionEvent: event,
		PublishedAt:      time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON decodes a message and rejects ones that
// cannot be applied.
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Op == "" || msg.Transaction.ID == "" {
		return nil, errIncompleteMessage
	}
	return &msg, nil
}
