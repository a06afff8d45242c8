// Package events defines the publish-subscribe bus and the event types
// that connect the RCON session to its observers (history, metrics,
// telemetry).
package events

import "time"

// EventType names a kind of event emitted through the Bus.
type EventType string

const (
	// Session lifecycle
	EventConnected     EventType = "session_connected"
	EventDisconnected  EventType = "session_disconnected"
	EventAuthenticated EventType = "session_authenticated"
	EventAuthFailed    EventType = "session_auth_failed"

	// Command dispatch
	EventCommandExecuted EventType = "command_executed"
	EventCommandFailed   EventType = "command_failed"

	// System
	EventShutdown EventType = "shutdown"
)

// Event is a single notification published on the Bus.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// SessionPayload describes a session lifecycle transition.
type SessionPayload struct {
	Address string `json:"address"`
	Reason  string `json:"reason,omitempty"`
}

// CommandPayload describes one executed (or failed) command.
type CommandPayload struct {
	Address  string        `json:"address"`
	Command  string        `json:"command"`
	Reply    string        `json:"reply,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the command completed without error.
func (p CommandPayload) OK() bool {
	return p.Error == ""
}
