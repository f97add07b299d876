package protocol

import (
	"encoding/json"
	"time"
)

// Envelope is the frame exchanged with the realtime gateway in both
// directions. RoomID scopes the event; Timestamp is the server's monotonic
// ordering authority for the entity the payload describes. Client-emitted
// frames leave Timestamp zero.
type Envelope struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into a client-emitted frame.
func NewEnvelope(eventType, roomID string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, RoomID: roomID, Payload: raw}, nil
}
