package domain

import (
	"time"
)

// Auction is a deal-room variant where multiple bidders compete by price
// within a time window. Amounts are in minor currency units (cents).
type Auction struct {
	ID                string       `json:"id"`
	DealRoomID        string       `json:"deal_room_id"`
	SellerUserID      string       `json:"seller_user_id"`
	State             AuctionState `json:"state"`
	StartPrice        int64        `json:"start_price"`
	MinIncrement      int64        `json:"min_increment"`
	CurrentHighestBid int64        `json:"current_highest_bid"`
	EndAt             time.Time    `json:"end_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Baseline is what the next bid must beat: the highest accepted bid, or the
// start price while no bid exists.
func (a *Auction) Baseline() int64 {
	if a.CurrentHighestBid > a.StartPrice {
		return a.CurrentHighestBid
	}
	return a.StartPrice
}

// Open reports whether the auction still accepts bids at all.
func (a *Auction) Open() bool {
	return a.State == AuctionSetup || a.State == AuctionActive
}

// Remaining is the countdown value: time left until EndAt, clamped at zero.
// Closing is server-driven; a zero countdown alone never closes the auction.
func (a *Auction) Remaining(now time.Time) time.Duration {
	d := a.EndAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Bid is a single price submission in an auction.
type Bid struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
	// IsHighest is derived: recomputed whenever a bid arrives, exactly one
	// true per auction, ties broken by earliest PlacedAt.
	IsHighest bool `json:"is_highest"`
}

// Participant is a user present in an auction room. Roles gate bid
// submission and are not mutated by bidding.
type Participant struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}
