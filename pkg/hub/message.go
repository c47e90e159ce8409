// Package hub fans dashboard updates out to every connected status client
// using a channel-based broadcast loop.
package hub

import (
	"encoding/json"
	"time"

	"github.com/teslashibe/go-arnav/pkg/navigation"
	"github.com/teslashibe/go-arnav/pkg/protocol"
)

// UpdateType identifies a dashboard update
type UpdateType string

const (
	UpdateSessionConnected    UpdateType = "session_connected"
	UpdateSessionDisconnected UpdateType = "session_disconnected"
	UpdateEvent               UpdateType = "event"
	UpdatePlanLoaded          UpdateType = "plan_loaded"
)

// Update is one dashboard notification
type Update struct {
	Type    UpdateType        `json:"type"`
	Session string            `json:"session,omitempty"`
	At      time.Time         `json:"at"`
	Event   *protocol.Message `json:"event,omitempty"` // Same encoding the device receives
	Detail  interface{}       `json:"detail,omitempty"`
}

// EventUpdate wraps an engine event for the dashboard
func EventUpdate(sessionID string, ev navigation.Event) (Update, error) {
	msg, err := protocol.EventMessage(ev)
	if err != nil {
		return Update{}, err
	}
	return Update{Type: UpdateEvent, Session: sessionID, At: ev.At, Event: msg}, nil
}

// Message is an encoded update queued for clients
type Message struct {
	Data []byte
}

// NewMessage encodes an update
func NewMessage(u Update) (Message, error) {
	if u.At.IsZero() {
		u.At = time.Now()
	}
	data, err := json.Marshal(u)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
