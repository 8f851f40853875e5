package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeSystem = "system"
	TypeUser   = "user"
)

var ErrMalformedInboundPayload = errors.New("malformed inbound payload")

// Envelope wraps every frame the server sends. User is only set for "user" envelopes.
type Envelope struct {
	Type    string `json:"type"`
	User    string `json:"user,omitempty"`
	Content string `json:"content"`
}

func SystemEnvelope(content string) Envelope {
	return Envelope{Type: TypeSystem, Content: content}
}

func UserEnvelope(sender, content string) Envelope {
	return Envelope{Type: TypeUser, User: sender, Content: content}
}

func JoinedEnvelope(clientID string) Envelope {
	return SystemEnvelope(clientID + " joined the chat")
}

func LeftEnvelope(clientID string) Envelope {
	return SystemEnvelope(clientID + " left the chat")
}

// valid reports whether e is one of the two shapes allowed on the wire.
func (e Envelope) valid() bool {
	switch e.Type {
	case TypeSystem:
		return e.User == ""
	case TypeUser:
		return true
	}
	return false
}

// ───────────────────────────── Inbound ─────────────────────────────────────

const contentField = "content"

// ParseInbound decodes a client frame of the form {"content": "<string>"}.
// The key is matched exactly; every failure wraps ErrMalformedInboundPayload.
func ParseInbound(data []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedInboundPayload, err)
	}
	raw, ok := fields[contentField]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", fmt.Errorf("%w: missing %q field", ErrMalformedInboundPayload, contentField)
	}
	var content string
	if err := json.Unmarshal(raw, &content); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedInboundPayload, err)
	}
	return content, nil
}
