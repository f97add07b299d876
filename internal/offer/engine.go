package offer

import (
	"time"

	"github.com/google/uuid"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
)

// Event types emitted by offer operations, broadcast locally so the view
// updates before the server confirms.
const (
	EventSubmitted = "offer.submitted"
	EventCountered = "offer.countered"
	EventAccepted  = "offer.accepted"
	EventDeclined  = "offer.declined"
	EventWithdrawn = "offer.withdrawn"
)

// Event is a local domain event produced by an offer operation.
type Event struct {
	Type    string
	Offer   domain.Offer
	ActorID string
	At      time.Time
}

// SubmitParams describes a fresh offer.
type SubmitParams struct {
	DealRoomID string
	BuyerID    string
	SellerID   string
	ListingID  *string
	ActorID    string
	Price      int64
	OfferType  domain.OfferType
	ExpiresAt  *time.Time
}

// Submit creates a pending offer. The actor must be a party to the room and
// the price must be positive.
func Submit(p SubmitParams, now time.Time) (*domain.Offer, []Event, error) {
	if p.Price <= 0 {
		return nil, nil, apperrors.Validation("price", "must be greater than zero")
	}
	if p.ActorID != p.BuyerID && p.ActorID != p.SellerID {
		return nil, nil, apperrors.Validation("actor", "not a party to this deal room")
	}
	offerType := p.OfferType
	if offerType == "" {
		offerType = domain.OfferCash
	}
	o := &domain.Offer{
		ID:           uuid.NewString(),
		DealRoomID:   p.DealRoomID,
		BuyerID:      p.BuyerID,
		SellerID:     p.SellerID,
		ListingID:    p.ListingID,
		OfferedPrice: p.Price,
		Status:       domain.OfferPending,
		OfferType:    offerType,
		LastActorID:  p.ActorID,
		ExpiresAt:    p.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return o, []Event{{Type: EventSubmitted, Offer: *o, ActorID: p.ActorID, At: now}}, nil
}

// Counter places a counter-amount on a live offer. Either party may counter;
// the counter makes them the last actor.
func Counter(o *domain.Offer, actorID string, amount int64, now time.Time) (*domain.Offer, []Event, error) {
	if err := mutable(o, now); err != nil {
		return nil, nil, err
	}
	if !o.HasParty(actorID) {
		return nil, nil, apperrors.Validation("actor", "not a party to this offer")
	}
	if amount <= 0 {
		return nil, nil, apperrors.Validation("amount", "must be greater than zero")
	}
	next := *o
	next.Status = domain.OfferCountered
	next.CounterAmount = &amount
	next.LastActorID = actorID
	next.UpdatedAt = now
	return &next, []Event{{Type: EventCountered, Offer: next, ActorID: actorID, At: now}}, nil
}

// Accept settles the offer at the price on the table. Only the party who did
// not make the most recent change may accept.
func Accept(o *domain.Offer, actorID string, now time.Time) (*domain.Offer, []Event, error) {
	if err := mutable(o, now); err != nil {
		return nil, nil, err
	}
	if !o.HasParty(actorID) {
		return nil, nil, apperrors.Validation("actor", "not a party to this offer")
	}
	if actorID == o.LastActorID {
		return nil, nil, apperrors.Validation("actor", "cannot accept your own standing offer")
	}
	next := *o
	next.Status = domain.OfferAccepted
	next.LastActorID = actorID
	next.UpdatedAt = now
	return &next, []Event{{Type: EventAccepted, Offer: next, ActorID: actorID, At: now}}, nil
}

// Decline rejects the offer. Either party may decline a live offer.
func Decline(o *domain.Offer, actorID string, now time.Time) (*domain.Offer, []Event, error) {
	if err := mutable(o, now); err != nil {
		return nil, nil, err
	}
	if !o.HasParty(actorID) {
		return nil, nil, apperrors.Validation("actor", "not a party to this offer")
	}
	next := *o
	next.Status = domain.OfferDeclined
	next.LastActorID = actorID
	next.UpdatedAt = now
	return &next, []Event{{Type: EventDeclined, Offer: next, ActorID: actorID, At: now}}, nil
}

// Withdraw retracts the actor's own standing offer. Only the last actor holds
// a standing offer to withdraw.
func Withdraw(o *domain.Offer, actorID string, now time.Time) (*domain.Offer, []Event, error) {
	if err := mutable(o, now); err != nil {
		return nil, nil, err
	}
	if actorID != o.LastActorID {
		return nil, nil, apperrors.Validation("actor", "only the offering party can withdraw")
	}
	next := *o
	next.Status = domain.OfferWithdrawn
	next.UpdatedAt = now
	return &next, []Event{{Type: EventWithdrawn, Offer: next, ActorID: actorID, At: now}}, nil
}

func mutable(o *domain.Offer, now time.Time) error {
	if o == nil {
		return apperrors.ErrNotFound
	}
	if o.Status.IsTerminal() {
		return apperrors.Terminal("offer", string(o.Status))
	}
	if o.LogicalStatus(now) == domain.OfferExpired {
		return apperrors.Terminal("offer", string(domain.OfferExpired))
	}
	return nil
}

// ResponseKind is what the viewer can do with the current offer, derived from
// the explicit last actor rather than from which party the viewer is.
type ResponseKind string

const (
	RespondNone    ResponseKind = "none"    // no live offer, or not a party
	RespondWaiting ResponseKind = "waiting" // viewer made the last change
	RespondDecide  ResponseKind = "decide"  // viewer may accept, decline or counter
)

// ResponseFor computes the viewer's position in the negotiation.
func ResponseFor(o *domain.Offer, viewerID string, now time.Time) ResponseKind {
	if o == nil || !o.HasParty(viewerID) {
		return RespondNone
	}
	switch o.LogicalStatus(now) {
	case domain.OfferPending, domain.OfferCountered:
	default:
		return RespondNone
	}
	if o.LastActorID == viewerID {
		return RespondWaiting
	}
	return RespondDecide
}

// IsMine reports whether the standing price change belongs to the viewer.
func IsMine(o *domain.Offer, viewerID string) bool {
	return o != nil && o.LastActorID == viewerID
}
