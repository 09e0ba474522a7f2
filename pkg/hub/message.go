// Package hub fans messages out to websocket clients. One goroutine owns
// the client set; slow clients are dropped instead of blocking senders.
package hub

import "github.com/gofiber/websocket/v2"

// MessageType indicates the websocket message format.
type MessageType int

const (
	// JSONMessage is a JSON-encoded message.
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (JPEG previews).
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

func (m Message) wsType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
