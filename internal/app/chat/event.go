/*
Package chat contains the realtime core of the moderated chat server: the
presence registry, the moderation queue, the delivery router, and the
per-connection session gateway.

This file defines the wire protocol. Inbound client actions and outbound
server events share a JSON envelope with a type discriminator and a deferred
payload, so each side can decode the payload into the appropriate concrete
struct once the type is known.
*/
package chat

import (
	"encoding/json"
	"fmt"
)

// Client -> Server action types.
const (
	ActionUserConnected      = "user_connected"
	ActionSendPublicMessage  = "send_public_message"
	ActionSendPrivateMessage = "send_private_message"
	ActionApproveMessage     = "approve_message"
	ActionRejectMessage      = "reject_message"
)

// Server -> Client event types.
const (
	EventOnlineUsers            = "online_users"
	EventPendingApproval        = "pending_approval"
	EventApprovedMessage        = "approved_message"
	EventMessageApproved        = "message_approved"
	EventMessageRejected        = "message_rejected"
	EventMessageSentForApproval = "message_sent_for_approval"
	EventReceivePrivateMessage  = "receive_private_message"
	EventPrivateMessageSent     = "private_message_sent"
	EventMessageError           = "message_error"
)

// Action is the inbound envelope. The payload is kept raw until the type
// discriminator selects the concrete struct to decode it into.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseAction decodes the raw bytes of an inbound frame into an Action
// envelope, validating that a type discriminator is present.
func ParseAction(data []byte) (*Action, error) {
	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("chat: invalid action envelope: %w", err)
	}
	if action.Type == "" {
		return nil, fmt.Errorf("chat: action missing type field")
	}
	return &action, nil
}

// ConnectPayload identifies the user behind a connection.
type ConnectPayload struct {
	UserID string `json:"userId"`
}

// PublicMessagePayload carries a public chat submission. The Sender field is
// accepted for wire compatibility but the gateway always uses the identity
// bound to the connection.
type PublicMessagePayload struct {
	Sender  string `json:"sender,omitempty"`
	Content string `json:"content"`
}

// PrivateMessagePayload carries a direct message to another user.
type PrivateMessagePayload struct {
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// ModerationPayload names the message an admin is approving or rejecting.
type ModerationPayload struct {
	MessageID string `json:"messageId"`
}

// Event is the outbound envelope sent to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ErrorPayload is the body of a message_error event.
type ErrorPayload struct {
	Error string `json:"error"`
}

// AckPayload acknowledges a submitted message back to its sender.
type AckPayload struct {
	MessageID string `json:"messageId"`
}

// ModerationNoticePayload tells admin UIs to drop a message from their
// pending list, regardless of which admin resolved it.
type ModerationNoticePayload struct {
	MessageID string `json:"messageId"`
}

// MarshalEvent builds the serialized frame for an outbound event.
func MarshalEvent(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("chat: marshal %s event: %w", eventType, err)
	}
	return data, nil
}
