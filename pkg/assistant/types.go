package assistant

import (
	"encoding/json"
	"time"
)

// State describes the connection lifecycle of the transport.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
)

// Config represents the transport configuration.
type Config struct {
	BackendURL  string
	ClientID    string
	DeviceID    string
	AccessToken string
	DialTimeout time.Duration
}

// Callbacks are the transport notifications. Every field is optional and
// nil-checked before invocation.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(payload json.RawMessage)
	OnClosed  func(err error)
	OnError   func(err error)
}
