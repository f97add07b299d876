package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/auction"
	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/internal/metrics"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
)

// PlaceBid validates the amount against the increment rules and the
// participant roster, then submits. Deliberately no phantom bid row: while
// the request is in flight only the PlacingBid flag is set, so an
// unconfirmed amount is never shown as the highest bid. The confirmed bid
// merges in via the REST response and again via the socket event; dedup by
// id makes the double arrival harmless.
func (s *Session) PlaceBid(ctx context.Context, amount int64) (*domain.Bid, error) {
	e := s.engine
	a, ok := e.store.AuctionByRoom(s.roomID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	role := auction.RoleOf(e.store.Participants(a.ID), e.userID)
	if err := auction.Validate(a, role, amount, time.Now(), e.cfg.BidSafetyBuffer); err != nil {
		var rej *auction.Rejection
		if errors.As(err, &rej) {
			metrics.BidsRejectedLocally.WithLabelValues(rej.Reason).Inc()
		}
		return nil, err
	}

	if !s.placingBid.CompareAndSwap(false, true) {
		return nil, apperrors.Validation("bid", "a bid is already in flight")
	}
	defer s.placingBid.Store(false)

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	confirmed, err := e.rest.PlaceBid(rctx, a.ID, amount)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Undercut by a concurrent higher bid: our view is provably
			// stale, refetch rather than patch.
			s.forceResync()
		}
		return nil, err
	}
	e.store.ApplyBid(*confirmed)
	return confirmed, nil
}

// PlacingBid reports whether a bid submission is currently in flight.
func (s *Session) PlacingBid() bool {
	return s.placingBid.Load()
}

// syncCountdown starts or stops the 1s countdown task to match the stored
// auction state: ticking while setup/active, detached once closed. The tick
// only updates the derived remaining-seconds value; closing is server-driven.
func (s *Session) syncCountdown() {
	a, ok := s.engine.store.AuctionByRoom(s.roomID)
	if !ok {
		return
	}

	s.countdownMu.Lock()
	defer s.countdownMu.Unlock()

	if !a.Open() {
		if s.countdown != nil {
			s.countdown.Stop()
			s.countdown = nil
		}
		s.remaining.Store(0)
		return
	}
	if s.countdown != nil {
		return
	}
	cd := auction.NewCountdown(a.EndAt, s.engine.cfg.CountdownInterval, func(remaining time.Duration) {
		s.remaining.Store(int64(remaining / time.Second))
	})
	s.countdown = cd
	cd.Start()
}

func (s *Session) stopCountdown() {
	s.countdownMu.Lock()
	defer s.countdownMu.Unlock()
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
}

// CountdownSeconds is the derived time-to-close for display. Zero once the
// window has passed, whether or not the server has closed the auction yet.
func (s *Session) CountdownSeconds() int64 {
	return s.remaining.Load()
}
