package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TopicChatMessages = "chat-messages"
	TopicExtract      = "ltm-extract"

	EventMessageCreated = "message.created"

	EventVersion = 1
)

// MessageCreatedEvent is the wire envelope for the chat-messages stream.
// Unknown fields are ignored on decode for forward compatibility.
type MessageCreatedEvent struct {
	EventType     string `json:"event_type"`
	Version       int    `json:"version"`
	MessageID     string `json:"message_id"`
	UserID        FlexID `json:"user_id"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func NewMessageCreatedEvent(msg Message) MessageCreatedEvent {
	return MessageCreatedEvent{
		EventType:     EventMessageCreated,
		Version:       EventVersion,
		MessageID:     msg.MessageID,
		UserID:        FlexID(msg.UserID),
		Role:          msg.Role,
		Content:       msg.Content,
		CreatedAt:     msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		CorrelationID: msg.CorrelationID,
	}
}

func (e MessageCreatedEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeMessageCreatedEvent parses and validates an envelope. A decode error
// here means the event must be skip-acknowledged, never retried. The payload
// is held to the same bounds Append enforces, so ingestion can never store a
// row the write path would have rejected.
func DecodeMessageCreatedEvent(data []byte) (MessageCreatedEvent, error) {
	var e MessageCreatedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return MessageCreatedEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if e.MessageID == "" || e.UserID == "" || e.CreatedAt == "" {
		return MessageCreatedEvent{}, fmt.Errorf("event missing required fields")
	}
	if !ValidRole(e.Role) {
		return MessageCreatedEvent{}, fmt.Errorf("event has invalid role %q", e.Role)
	}
	if strings.TrimSpace(e.Content) == "" {
		return MessageCreatedEvent{}, fmt.Errorf("event content is empty")
	}
	if utf8.RuneCountInString(e.Content) > MaxContentLength {
		return MessageCreatedEvent{}, fmt.Errorf("event content exceeds %d characters", MaxContentLength)
	}
	return e, nil
}

// Message converts the envelope back into a storable message.
func (e MessageCreatedEvent) Message() (Message, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("parse created_at: %w", err)
	}
	return Message{
		UserID:        NormalizeUserID(string(e.UserID)),
		MessageID:     e.MessageID,
		Role:          e.Role,
		Content:       e.Content,
		CorrelationID: e.CorrelationID,
		CreatedAt:     createdAt.UTC(),
	}, nil
}

// ExtractRequest is the wire payload for the ltm-extract stream.
type ExtractRequest struct {
	UserID        FlexID `json:"user_id"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (r ExtractRequest) Encode() ([]byte, error) {
	return json.Marshal(r)
}

func DecodeExtractRequest(data []byte) (ExtractRequest, error) {
	var r ExtractRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return ExtractRequest{}, fmt.Errorf("decode extract request: %w", err)
	}
	if r.UserID == "" || r.Message == "" {
		return ExtractRequest{}, fmt.Errorf("extract request missing required fields")
	}
	return r, nil
}
