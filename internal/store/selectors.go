package store

import (
	"sort"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
)

// Room returns a copy of the room, with the derived unread count filled in
// from the message list.
func (s *Store) Room(id string) (*domain.DealRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	cp := room.Clone()
	cp.UnreadCount = s.unreadLocked(id)
	return cp, true
}

func (s *Store) unreadLocked(roomID string) int {
	n := 0
	for _, m := range s.messagesByRoom[roomID] {
		if !m.IsRead {
			n++
		}
	}
	return n
}

// Rooms returns every known room, most recent activity first.
func (s *Store) Rooms() []domain.DealRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DealRoom, 0, len(s.rooms))
	for id, room := range s.rooms {
		cp := room.Clone()
		cp.UnreadCount = s.unreadLocked(id)
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].UpdatedAt, out[j].UpdatedAt
		if out[i].LastMessageAt != nil {
			ti = *out[i].LastMessageAt
		}
		if out[j].LastMessageAt != nil {
			tj = *out[j].LastMessageAt
		}
		return ti.After(tj)
	})
	return out
}

// Messages returns the room's messages ordered by CreatedAt (id as a
// tiebreak), tolerating out-of-order delivery.
func (s *Store) Messages(roomID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messagesByRoom[roomID]
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Message returns a single message by id.
func (s *Store) Message(roomID, id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messagesByRoom[roomID][id]
	return msg, ok
}

// UnreadCount is always recomputed from the read flags, never cached.
func (s *Store) UnreadCount(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadLocked(roomID)
}

// ActiveOffer returns the room's single non-terminal offer, if any.
func (s *Store) ActiveOffer(roomID string) (*domain.Offer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.offersByRoom[roomID]
	if !ok {
		return nil, false
	}
	o, ok := s.offers[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

// Offer returns an offer by id, terminal or not.
func (s *Store) Offer(id string) (*domain.Offer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

// Auction returns an auction by id.
func (s *Store) Auction(id string) (*domain.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// AuctionByRoom returns the auction attached to a deal room, if the room is
// an auction room.
func (s *Store) AuctionByRoom(roomID string) (*domain.Auction, bool) {
	s.mu.RLock()
	id, ok := s.auctionByRoom[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.Auction(id)
}

// Bids returns the auction's bids, highest first.
func (s *Store) Bids(auctionID string) []domain.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := s.bidsByAuction[auctionID]
	out := make([]domain.Bid, len(bids))
	copy(out, bids)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out
}

// HighestBid returns the bid currently flagged IsHighest.
func (s *Store) HighestBid(auctionID string) (domain.Bid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bidsByAuction[auctionID] {
		if b.IsHighest {
			return b, true
		}
	}
	return domain.Bid{}, false
}

// Participants returns the auction roster.
func (s *Store) Participants(auctionID string) []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roster := s.participants[auctionID]
	out := make([]domain.Participant, len(roster))
	copy(out, roster)
	return out
}

// TypingUsers returns users whose typing indicator is still fresh.
func (s *Store) TypingUsers(roomID string, now time.Time, ttl time.Duration) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for userID, seen := range s.typing[roomID] {
		if now.Sub(seen) <= ttl {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out
}

// OnlineUsers returns the room's online-user set as reported by the gateway.
func (s *Store) OnlineUsers(roomID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.online[roomID]))
	for id := range s.online[roomID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
