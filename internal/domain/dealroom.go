package domain

import (
	"time"
)

// DealRoom is the negotiation session between one buyer and one seller over
// one listing. Rooms are never deleted, only moved to a terminal state.
type DealRoom struct {
	ID        string    `json:"id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	ListingID *string   `json:"listing_id,omitempty"`
	State     RoomState `json:"state"`
	// Metadata is opaque to the engine; transitions shallow-merge into it.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Denormalized fields for list display. May lag the room's message list;
	// UnreadCount is derived, recomputed from message read flags on every
	// read, never trusted from the wire.
	UnreadCount   int        `json:"unread_count"`
	LatestOffer   *Offer     `json:"latest_offer,omitempty"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`

	// Payment confirmation, set only through the payment collaborator's
	// explicit callback, never inferred from State.
	PaymentOrderID   string `json:"payment_order_id,omitempty"`
	PaymentCompleted bool   `json:"payment_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Other returns the counterparty of viewerID in the room.
func (r *DealRoom) Other(viewerID string) string {
	if viewerID == r.BuyerID {
		return r.SellerID
	}
	return r.BuyerID
}

// HasParty reports whether userID is the buyer or the seller.
func (r *DealRoom) HasParty(userID string) bool {
	return userID == r.BuyerID || userID == r.SellerID
}

// Clone returns a deep enough copy for mutation outside the store.
func (r *DealRoom) Clone() *DealRoom {
	cp := *r
	if r.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	if r.LatestOffer != nil {
		offer := *r.LatestOffer
		cp.LatestOffer = &offer
	}
	return &cp
}
