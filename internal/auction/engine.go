package auction

import (
	"fmt"
	"sort"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
)

// Rejection reasons for client-side bid validation.
const (
	ReasonBelowMinimum  = "below-minimum"
	ReasonAuctionClosed = "auction-closed"
	ReasonTooLate       = "too-late"
	ReasonNotBidder     = "not-bidder"
)

// Rejection explains why a bid was blocked before submission. MinRequired is
// set for below-minimum so the UI can show the smallest valid amount.
type Rejection struct {
	Reason      string
	MinRequired int64
}

func (e *Rejection) Error() string {
	if e.Reason == ReasonBelowMinimum {
		return fmt.Sprintf("bid rejected: %s (minimum %d)", e.Reason, e.MinRequired)
	}
	return "bid rejected: " + e.Reason
}

func (e *Rejection) Is(target error) bool { return target == apperrors.ErrValidation }

// Validate checks a proposed bid amount before it is allowed near the
// network. The safety buffer only prevents submitting bids doomed to
// server-side rejection; the server decision stays authoritative.
func Validate(a *domain.Auction, role domain.Role, amount int64, now time.Time, safetyBuffer time.Duration) error {
	if a == nil {
		return apperrors.ErrNotFound
	}
	if role != domain.RoleBidder {
		return &Rejection{Reason: ReasonNotBidder}
	}
	if !a.Open() {
		return &Rejection{Reason: ReasonAuctionClosed}
	}
	if !now.Before(a.EndAt.Add(-safetyBuffer)) {
		return &Rejection{Reason: ReasonTooLate}
	}
	baseline := a.Baseline()
	minRequired := baseline + a.MinIncrement
	if amount <= baseline || amount < minRequired {
		return &Rejection{Reason: ReasonBelowMinimum, MinRequired: minRequired}
	}
	return nil
}

// ApplyBid merges an incoming bid (own confirmed bid or another
// participant's) into the auction's bid list: dedup by id, recompute the
// highest-bid amount and the single IsHighest flag. Returns the updated list,
// the new highest amount and whether the bid was actually inserted.
func ApplyBid(a *domain.Auction, bids []domain.Bid, incoming domain.Bid) ([]domain.Bid, int64, bool) {
	for _, b := range bids {
		if b.ID == incoming.ID {
			return bids, a.CurrentHighestBid, false
		}
	}
	merged := make([]domain.Bid, len(bids), len(bids)+1)
	copy(merged, bids)
	merged = append(merged, incoming)

	highest := recomputeHighest(merged)
	amount := a.CurrentHighestBid
	if highest >= 0 && merged[highest].Amount > amount {
		amount = merged[highest].Amount
	}
	return merged, amount, true
}

// recomputeHighest flips IsHighest so exactly one bid carries it: the maximum
// amount, ties broken by earliest PlacedAt. Returns the winning index, -1 for
// an empty list.
func recomputeHighest(bids []domain.Bid) int {
	winner := -1
	for i := range bids {
		bids[i].IsHighest = false
		if winner < 0 {
			winner = i
			continue
		}
		w := bids[winner]
		if bids[i].Amount > w.Amount ||
			(bids[i].Amount == w.Amount && bids[i].PlacedAt.Before(w.PlacedAt)) {
			winner = i
		}
	}
	if winner >= 0 {
		bids[winner].IsHighest = true
	}
	return winner
}

// SortBids orders bids for display: amount descending, then earliest first.
func SortBids(bids []domain.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		return bids[i].PlacedAt.Before(bids[j].PlacedAt)
	})
}

// RoleOf looks the user up in the participant roster. Unknown users are
// spectators: they can watch, never bid.
func RoleOf(participants []domain.Participant, userID string) domain.Role {
	for _, p := range participants {
		if p.UserID == userID {
			return p.Role
		}
	}
	return domain.RoleSpectator
}
