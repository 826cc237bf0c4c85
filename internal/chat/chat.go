// internal/chat/chat.go
package chat

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// The chat transport shares the room's push channel but its message
// semantics live in a separate collaborator. This package only moves
// bytes: inbound frames are forwarded verbatim, outbound frames are
// assembled without interpreting their content.

// Consumer receives raw inbound chat frames exactly as they arrived.
type Consumer func(raw json.RawMessage)

// Relay fans inbound chat frames out to registered consumers and builds
// outbound frames for the connection manager to send.
type Relay struct {
	mu        sync.Mutex
	logger    *logrus.Logger
	consumers []Consumer
}

// NewRelay creates an empty relay.
func NewRelay(logger *logrus.Logger) *Relay {
	return &Relay{logger: logger}
}

// Register adds a consumer for inbound chat frames.
func (r *Relay) Register(fn Consumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers = append(r.consumers, fn)
}

// Deliver forwards an inbound chat frame verbatim to every consumer.
func (r *Relay) Deliver(raw json.RawMessage) {
	r.mu.Lock()
	consumers := append([]Consumer{}, r.consumers...)
	r.mu.Unlock()
	if len(consumers) == 0 {
		r.logger.Debug("chat: dropping inbound message, no consumers registered")
		return
	}
	for _, fn := range consumers {
		fn(raw)
	}
}

// OutboundMessage builds a send_chat_message frame. The message id lets
// the sender recognize its own echo on the push channel.
func OutboundMessage(roomCode, playerID, text string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":       "send_chat_message",
		"message_id": uuid.NewString(),
		"room_code":  roomCode,
		"player_id":  playerID,
		"text":       text,
	})
}

// OutboundTyping builds a typing_indicator frame.
func OutboundTyping(roomCode, playerID string, typing bool) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":      "typing_indicator",
		"room_code": roomCode,
		"player_id": playerID,
		"is_typing": typing,
	})
}
