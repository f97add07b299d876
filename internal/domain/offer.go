package domain

import (
	"time"
)

// Offer is a proposed price for a listing inside a deal room. Amounts are in
// minor currency units (cents).
type Offer struct {
	ID            string      `json:"id"`
	DealRoomID    string      `json:"deal_room_id"`
	BuyerID       string      `json:"buyer_id"`
	SellerID      string      `json:"seller_id"`
	ListingID     *string     `json:"listing_id,omitempty"`
	OfferedPrice  int64       `json:"offered_price"`
	CounterAmount *int64      `json:"counter_amount,omitempty"`
	Status        OfferStatus `json:"status"`
	OfferType     OfferType   `json:"offer_type"`
	// LastActorID is the party who made the most recent price change. It is
	// carried on every offer event so "whose turn is it" is never guessed
	// from buyer/seller comparison.
	LastActorID string     `json:"last_actor_id"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Active reports whether the offer still accepts mutation.
func (o *Offer) Active() bool {
	return !o.Status.IsTerminal()
}

// EffectivePrice is the price currently on the table: the latest counter if
// one exists, the original amount otherwise.
func (o *Offer) EffectivePrice() int64 {
	if o.CounterAmount != nil {
		return *o.CounterAmount
	}
	return o.OfferedPrice
}

// LogicalStatus presents an offer whose expiry has passed as expired even
// before the server pushes the terminal event. Pure view derivation; the
// stored status is untouched until the server says so.
func (o *Offer) LogicalStatus(now time.Time) OfferStatus {
	if !o.Status.IsTerminal() && o.ExpiresAt != nil && !now.Before(*o.ExpiresAt) {
		return OfferExpired
	}
	return o.Status
}

// HasParty reports whether userID is the offer's buyer or seller.
func (o *Offer) HasParty(userID string) bool {
	return userID == o.BuyerID || userID == o.SellerID
}
