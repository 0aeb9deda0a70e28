package websockets

import (
	"encoding/json"
	"fmt"
)

// Codec converts wire messages to and from their transportable text form.
// Marshal and parse failures stay behind error returns so connection
// logic never sees a panic from malformed input.
type Codec struct {
}

// Encode serializes a message for the transport.
func (Codec) Encode(msg *Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q message: %w", msg.Kind, err)
	}
	return data, nil
}

// Decode parses an inbound frame back into a message.
func (Codec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &msg, nil
}
