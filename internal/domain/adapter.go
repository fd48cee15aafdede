package domain

// ConnState is the lifecycle state of a venue adapter's connection. It is
// owned exclusively by the adapter; other components only read it.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSubscribing
	StateListening
	StateReconnecting
	StateStopped
)

// String returns the lower-case state name.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateListening:
		return "listening"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// BookUpdate is the tagged fan-in message every adapter publishes: a venue
// name plus the complete normalized book it just produced. A single consumer
// loop in the state buffer reads these, which keeps book handling out of
// adapter I/O callbacks.
type BookUpdate struct {
	Venue string
	Book  *OrderBook
}
