package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/internal/metrics"
	"github.com/NaveedAfraz/swapsphere-sync/internal/offer"
	"github.com/NaveedAfraz/swapsphere-sync/internal/rest"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
)

// SubmitOffer creates a fresh offer on the room. Local validation and
// optimistic insert first; the server-assigned offer replaces the local one
// on confirmation, and a rejection removes it again.
func (s *Session) SubmitOffer(ctx context.Context, price int64, offerType domain.OfferType, expiresAt *time.Time) (*domain.Offer, error) {
	e := s.engine
	room, ok := e.store.Room(s.roomID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if existing, ok := e.store.ActiveOffer(s.roomID); ok && existing.Active() {
		return nil, apperrors.Validation("offer", "an offer is already active in this room")
	}

	local, _, err := offer.Submit(offer.SubmitParams{
		DealRoomID: s.roomID,
		BuyerID:    room.BuyerID,
		SellerID:   room.SellerID,
		ListingID:  room.ListingID,
		ActorID:    e.userID,
		Price:      price,
		OfferType:  offerType,
		ExpiresAt:  expiresAt,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	e.store.UpsertOffer(*local)

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	confirmed, err := e.rest.CreateOffer(rctx, *local)
	if err != nil {
		e.store.RemoveOffer(local.ID)
		metrics.OptimisticRollbacks.Inc()
		return nil, err
	}
	if confirmed.ID != local.ID {
		e.store.RemoveOffer(local.ID)
	}
	e.store.UpsertOffer(*confirmed)
	return confirmed, nil
}

// OfferResponse is what the UI asks for when the user reacts to the current
// offer. The branch actually taken is decided by the engine's computed
// ownership, not by which button happened to be rendered.
type OfferResponse string

const (
	OfferRespondAccept   OfferResponse = "accept"
	OfferRespondDecline  OfferResponse = "decline"
	OfferRespondCounter  OfferResponse = "counter"
	OfferRespondWithdraw OfferResponse = "withdraw"
)

// RespondToOffer applies the requested response to the room's active offer:
// engine validation (turn order, terminal states, expiry), optimistic
// update, REST confirmation, rollback on failure.
func (s *Session) RespondToOffer(ctx context.Context, kind OfferResponse, amount *int64) (*domain.Offer, error) {
	e := s.engine
	current, ok := e.store.ActiveOffer(s.roomID)
	if !ok {
		return nil, apperrors.Validation("offer", "no active offer in this room")
	}
	now := time.Now()

	var (
		next   *domain.Offer
		err    error
		action string
	)
	switch kind {
	case OfferRespondAccept:
		next, _, err = offer.Accept(current, e.userID, now)
		action = rest.OfferActionAccept
	case OfferRespondDecline:
		next, _, err = offer.Decline(current, e.userID, now)
		action = rest.OfferActionDecline
	case OfferRespondCounter:
		if amount == nil {
			return nil, apperrors.Validation("amount", "counter requires an amount")
		}
		next, _, err = offer.Counter(current, e.userID, *amount, now)
		action = rest.OfferActionCounter
	case OfferRespondWithdraw:
		next, _, err = offer.Withdraw(current, e.userID, now)
		action = rest.OfferActionCancel
	default:
		return nil, apperrors.Validation("kind", "unknown offer response")
	}
	if err != nil {
		return nil, err
	}

	e.store.UpsertOffer(*next)

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	confirmed, err := e.rest.OfferAction(rctx, current.ID, action, amount)
	if err != nil {
		if e.store.RestoreOffer(*current, *next) {
			metrics.OptimisticRollbacks.Inc()
		}
		if errors.Is(err, apperrors.ErrConflict) {
			s.forceResync()
		}
		return nil, err
	}
	e.store.UpsertOffer(*confirmed)
	return confirmed, nil
}

// MyOfferPosition tells the UI whether the viewer is waiting on the
// counterparty or free to accept/decline/counter, derived from the explicit
// last actor on the offer.
func (s *Session) MyOfferPosition() offer.ResponseKind {
	current, ok := s.engine.store.ActiveOffer(s.roomID)
	if !ok {
		return offer.RespondNone
	}
	return offer.ResponseFor(current, s.engine.userID, time.Now())
}
