// Package remote carries clipboard traffic between the display client and its
// peer on the other side of the VM boundary.
//
// Every message is one line of JSON:
//
//	{"type":"notice","id":"…","kind":"png","size":1048576,"sent":"…"}\n
//
// Payload bytes travel in data messages, base64 encoded by encoding/json and
// optionally gzip compressed beforehand.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/berrythewa/clipbridge/internal/types"
)

// Type identifies a message.
type Type string

const (
	// TypeHello introduces a device right after connecting.
	TypeHello Type = "hello"
	// TypeNotice announces that the sender's clipboard now holds a kind.
	TypeNotice Type = "notice"
	// TypeRelease says the sender's clipboard holds nothing we can use.
	TypeRelease Type = "release"
	// TypeRequest asks for the payload of a notice.
	TypeRequest Type = "request"
	// TypeData carries one chunk of a payload; the last one has Final set.
	TypeData Type = "data"
)

// ErrInvalidMessage wraps every Validate and Decode failure.
var ErrInvalidMessage = errors.New("remote: invalid message")

// Message is the single wire envelope. Fields irrelevant to a Type are omitted.
type Message struct {
	Type       Type              `json:"type"`
	ID         string            `json:"id,omitempty"`
	Kind       types.ContentKind `json:"kind"`
	Size       int64             `json:"size,omitempty"`
	Data       []byte            `json:"data,omitempty"`
	Compressed bool              `json:"compressed,omitempty"`
	Final      bool              `json:"final,omitempty"`
	Device     string            `json:"device,omitempty"`
	Sent       time.Time         `json:"sent"`
}

// Validate checks the fields each type needs.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeHello:
		if m.Device == "" {
			return fmt.Errorf("%w: hello without device", ErrInvalidMessage)
		}
	case TypeRelease:
	case TypeNotice, TypeRequest:
		if m.ID == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalidMessage, m.Type)
		}
		if !m.Kind.Valid() {
			return fmt.Errorf("%w: %s with kind %s", ErrInvalidMessage, m.Type, m.Kind)
		}
	case TypeData:
		if m.ID == "" {
			return fmt.Errorf("%w: data without id", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
	return nil
}

// Encode serialises m, stamping Sent if unset.
func (m *Message) Encode() ([]byte, error) {
	if m.Sent.IsZero() {
		m.Sent = time.Now().UTC()
	}
	return json.Marshal(m)
}

// Decode parses and validates one message.
func Decode(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
