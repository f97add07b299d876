package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks optimistic message ids minted locally before the server
// assigns the real one.
const TempIDPrefix = "tmp-"

// Message is a chat message inside a deal room. Append-only: the read flag is
// the only field that ever changes after creation.
type Message struct {
	ID         string    `json:"id"`
	DealRoomID string    `json:"deal_room_id"`
	SenderID   string    `json:"sender_id"`
	Body       string    `json:"body"`
	IsSystem   bool      `json:"is_system"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`

	// Delivery is local-only optimistic send state.
	Delivery DeliveryState `json:"-"`
}

// NewTempID mints an optimistic local message id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was minted locally and still awaits the
// server-assigned replacement.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
