package protocol

import (
	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
)

// SendMessagePayload is the body of a send_message frame.
type SendMessagePayload struct {
	Body string `json:"body"`
	// ClientRef echoes the sender's optimistic id back on the confirmed
	// new_message event so the local copy can be replaced, not duplicated.
	ClientRef string `json:"client_ref,omitempty"`
}

// NewMessagePayload is the body of a new_message frame.
type NewMessagePayload struct {
	Message   domain.Message `json:"message"`
	ClientRef string         `json:"client_ref,omitempty"`
}

// TypingPayload is the body of typing_start/typing_stop and user_typing.
type TypingPayload struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

// MessagesReadPayload is the body of mark_read and messages_read. An empty
// MessageIDs means every message in the room up to Timestamp.
type MessagesReadPayload struct {
	ReaderID   string   `json:"reader_id"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

// UpdateDealStatePayload is the body of update_deal_state.
type UpdateDealStatePayload struct {
	State    domain.RoomState       `json:"state"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DealStateChangedPayload is the body of deal_state_changed.
type DealStateChangedPayload struct {
	Room domain.DealRoom `json:"room"`
}

// OnlineUsersPayload is the body of online_users.
type OnlineUsersPayload struct {
	UserIDs []string `json:"user_ids"`
}

// OfferUpdatedPayload is the body of offer_updated. LastActorID rides on the
// offer itself.
type OfferUpdatedPayload struct {
	Offer domain.Offer `json:"offer"`
}

// PlaceBidPayload is the body of place_bid.
type PlaceBidPayload struct {
	AuctionID string `json:"auction_id"`
	Amount    int64  `json:"amount"`
}

// NewBidPayload is the body of new_bid.
type NewBidPayload struct {
	Bid domain.Bid `json:"bid"`
}

// AuctionUpdatedPayload is the body of auction_updated, including auction
// close which is always server-driven.
type AuctionUpdatedPayload struct {
	Auction      domain.Auction       `json:"auction"`
	Participants []domain.Participant `json:"participants,omitempty"`
}
