package core

import (
	"encoding/json"
	"strings"
	"time"
)

// Event type discriminators emitted by the identity service.
const (
	EventTypeUserCreated     = "user.create"
	EventTypeUserUpdated     = "user.update"
	EventTypeUserDeleted     = "user.delete"
	EventTypeUserDeactivated = "user.deactivate"
	EventTypeTokenRevoked    = "token.revoke"
)

// UserRecord is the user payload embedded in user lifecycle events. Fields
// outside this set are preserved in Envelope.Payload for handlers that need
// them.
type UserRecord struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// TokenRevocation is the payload of a token revocation notice.
type TokenRevocation struct {
	TokenID   string     `json:"token_id"`
	UserID    string     `json:"user_id,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Envelope is a parsed event notification. Type decides which payload
// fields are populated; unrecognized types parse successfully and carry
// their raw payload so routing can fall through to a log-only handler.
type Envelope struct {
	Type      string
	ID        string
	Timestamp time.Time
	User      *UserRecord
	Token     *TokenRevocation
	Payload   json.RawMessage
}

// Known reports whether Type is one of the discriminators this module
// decodes a typed payload for.
func (e Envelope) Known() bool {
	switch e.Type {
	case EventTypeUserCreated, EventTypeUserUpdated, EventTypeUserDeleted,
		EventTypeUserDeactivated, EventTypeTokenRevoked:
		return true
	default:
		return false
	}
}

type wireEnvelope struct {
	Type      string           `json:"type"`
	ID        string           `json:"id"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
	User      *UserRecord      `json:"user,omitempty"`
	Token     *TokenRevocation `json:"token,omitempty"`
}

type wireBody struct {
	Event json.RawMessage `json:"event"`
}

// DecodeEnvelope parses raw delivery bytes into an Envelope. The identity
// service wraps the envelope under a top-level "event" key; bodies that
// carry the envelope fields at the top level are accepted too. Unknown
// discriminators are not an error. Missing discriminators are.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	if len(raw) == 0 {
		return Envelope{}, badEnvelopeError("core: event payload is empty", nil)
	}

	payload := raw
	var body wireBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return Envelope{}, badEnvelopeError("core: decode event payload", err)
	}
	if len(body.Event) > 0 {
		payload = body.Event
	}

	var wire wireEnvelope
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Envelope{}, badEnvelopeError("core: decode event envelope", err)
	}
	wire.Type = strings.TrimSpace(wire.Type)
	if wire.Type == "" {
		return Envelope{}, badEnvelopeError("core: event type discriminator is required", nil)
	}

	env := Envelope{
		Type:    wire.Type,
		ID:      strings.TrimSpace(wire.ID),
		Payload: append(json.RawMessage(nil), payload...),
	}
	if wire.Timestamp != nil {
		env.Timestamp = wire.Timestamp.UTC()
	}

	switch env.Type {
	case EventTypeUserCreated, EventTypeUserUpdated, EventTypeUserDeleted, EventTypeUserDeactivated:
		env.User = wire.User
	case EventTypeTokenRevoked:
		env.Token = wire.Token
	}
	return env, nil
}
