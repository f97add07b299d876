package syncer

import (
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/internal/realtime"
	"github.com/NaveedAfraz/swapsphere-sync/internal/rest"
)

// Read selectors exposed to the UI layer. All of them return copies; the
// store itself is never handed out.

func (s *Session) Room() (*domain.DealRoom, bool) {
	return s.engine.store.Room(s.roomID)
}

func (s *Session) Messages() []domain.Message {
	return s.engine.store.Messages(s.roomID)
}

func (s *Session) UnreadCount() int {
	return s.engine.store.UnreadCount(s.roomID)
}

func (s *Session) ActiveOffer() (*domain.Offer, bool) {
	return s.engine.store.ActiveOffer(s.roomID)
}

func (s *Session) Auction() (*domain.Auction, bool) {
	return s.engine.store.AuctionByRoom(s.roomID)
}

func (s *Session) Bids() []domain.Bid {
	a, ok := s.engine.store.AuctionByRoom(s.roomID)
	if !ok {
		return nil
	}
	return s.engine.store.Bids(a.ID)
}

func (s *Session) HighestBid() (domain.Bid, bool) {
	a, ok := s.engine.store.AuctionByRoom(s.roomID)
	if !ok {
		return domain.Bid{}, false
	}
	return s.engine.store.HighestBid(a.ID)
}

func (s *Session) OnlineUsers() []string {
	return s.engine.store.OnlineUsers(s.roomID)
}

func (s *Session) TypingUsers() []string {
	return s.engine.store.TypingUsers(s.roomID, time.Now(), s.engine.cfg.TypingTTL)
}

// realtimeSnapshot adapts the REST snapshot shape to the reconciler's.
func realtimeSnapshot(snap *rest.RoomSnapshot, msgs []domain.Message) realtime.Snapshot {
	return realtime.Snapshot{
		Room:         &snap.Room,
		Messages:     msgs,
		Offer:        snap.Offer,
		Auction:      snap.Auction,
		Bids:         snap.Bids,
		Participants: snap.Participants,
	}
}
