package domain

// RoomState is the deal-room lifecycle state.
type RoomState string

const (
	RoomNegotiation      RoomState = "negotiation"
	RoomPaymentPending   RoomState = "payment_pending"
	RoomPaymentCompleted RoomState = "payment_completed"
	RoomShipping         RoomState = "shipping"
	RoomDelivered        RoomState = "delivered"
	RoomCompleted        RoomState = "completed"
	RoomCancelled        RoomState = "cancelled"
	RoomDisputed         RoomState = "disputed"
)

// IsTerminal reports whether the state admits no outgoing transitions at all.
// Disputed is not terminal in this sense: it has no defined outgoing edges
// today, but it is an escape hatch, not a settled end state.
func (s RoomState) IsTerminal() bool {
	return s == RoomCompleted || s == RoomCancelled
}

// OfferStatus is the offer lifecycle state.
type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferCountered OfferStatus = "countered"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferWithdrawn OfferStatus = "withdrawn"
	OfferExpired   OfferStatus = "expired"
)

func (s OfferStatus) IsTerminal() bool {
	switch s {
	case OfferAccepted, OfferDeclined, OfferWithdrawn, OfferExpired:
		return true
	}
	return false
}

// OfferType distinguishes pure cash offers from swap and cash-plus-swap deals.
type OfferType string

const (
	OfferCash   OfferType = "cash"
	OfferSwap   OfferType = "swap"
	OfferHybrid OfferType = "hybrid"
)

// AuctionState is the auction lifecycle state.
type AuctionState string

const (
	AuctionSetup  AuctionState = "setup"
	AuctionActive AuctionState = "active"
	AuctionClosed AuctionState = "closed"
)

// Role is a user's role inside an auction room.
type Role string

const (
	RoleSeller    Role = "seller"
	RoleBidder    Role = "bidder"
	RoleSpectator Role = "spectator"
)

// DeliveryState tracks an optimistic local message until the server confirms
// it. Never serialized; the server has no notion of it.
type DeliveryState string

const (
	DeliverySending DeliveryState = "sending"
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
)
