package models

// -----------------------------------------------------------------------------
// Websocket payloads
// -----------------------------------------------------------------------------

const (
	StreamTypeSnapshot = "SNAPSHOT"
	StreamTypeQuote    = "QUOTE"
	StreamTypeError    = "ERROR"
)

// MStreamMessage is what the hub pushes to websocket clients.
type MStreamMessage struct {
	Type      string            `json:"type"`
	Quotes    map[string]MQuote `json:"quotes,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string   `json:"command"` // subscribe, unsubscribe
	Symbols []string `json:"symbols"`
}
