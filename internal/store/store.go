// Package store holds the normalized client-side view of deal rooms,
// messages, offers, auctions and bids. It is the single owner of entity
// state: the UI reads through selectors, and every write arrives through the
// sync orchestrator or the reconciliation layer, never directly.
//
// Merge discipline: messages and bids are insert-if-absent by id; rooms,
// offers and auctions are compare-and-swap-if-newer by server UpdatedAt, so
// applying the same events in any callback order converges to the same state.
package store

import (
	"sync"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/auction"
	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	rooms          map[string]*domain.DealRoom
	messagesByRoom map[string]map[string]domain.Message
	offers         map[string]*domain.Offer
	offersByRoom   map[string]string // room id -> active (non-terminal) offer id
	auctions       map[string]*domain.Auction
	auctionByRoom  map[string]string
	bidsByAuction  map[string][]domain.Bid
	participants   map[string][]domain.Participant // auction id -> roster
	typing         map[string]map[string]time.Time // room id -> user id -> last seen typing
	online         map[string]map[string]struct{}  // room id -> online user ids
}

func New() *Store {
	return &Store{
		rooms:          make(map[string]*domain.DealRoom),
		messagesByRoom: make(map[string]map[string]domain.Message),
		offers:         make(map[string]*domain.Offer),
		offersByRoom:   make(map[string]string),
		auctions:       make(map[string]*domain.Auction),
		auctionByRoom:  make(map[string]string),
		bidsByAuction:  make(map[string][]domain.Bid),
		participants:   make(map[string][]domain.Participant),
		typing:         make(map[string]map[string]time.Time),
		online:         make(map[string]map[string]struct{}),
	}
}

// UpsertRoom merges a room snapshot or event. An incoming version older than
// what is stored is dropped. Returns whether the stored state changed.
func (s *Store) UpsertRoom(room domain.DealRoom) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if ok && room.UpdatedAt.Before(existing.UpdatedAt) {
		return false
	}
	// Never let an event missing the denormalized fields wipe them out.
	if ok {
		if room.LastMessage == nil {
			room.LastMessage = existing.LastMessage
			room.LastMessageAt = existing.LastMessageAt
		}
		if room.LatestOffer == nil {
			room.LatestOffer = existing.LatestOffer
		}
		if !room.PaymentCompleted && existing.PaymentCompleted {
			room.PaymentCompleted = existing.PaymentCompleted
			room.PaymentOrderID = existing.PaymentOrderID
		}
	}
	s.rooms[room.ID] = room.Clone()
	return true
}

// RestoreRoom undoes an optimistic room write, but only while that write is
// still what is stored. A server event that merged during the request's
// in-flight window is newer truth and must not be clobbered by the rollback.
// Reports whether the restore happened.
func (s *Store) RestoreRoom(prev, optimistic domain.DealRoom) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rooms[prev.ID]
	if !ok || !cur.UpdatedAt.Equal(optimistic.UpdatedAt) || cur.State != optimistic.State {
		return false
	}
	s.rooms[prev.ID] = prev.Clone()
	return true
}

// SetPayment records the payment collaborator's explicit confirmation.
func (s *Store) SetPayment(roomID, orderID string, completed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	room.PaymentOrderID = orderID
	room.PaymentCompleted = completed
	return true
}

// PutMessage inserts a message if its id is absent. Duplicate deliveries
// (socket redelivery, REST catch-up overlap) are no-ops. Returns whether the
// message was inserted.
func (s *Store) PutMessage(msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putMessageLocked(msg)
}

func (s *Store) putMessageLocked(msg domain.Message) bool {
	msgs, ok := s.messagesByRoom[msg.DealRoomID]
	if !ok {
		msgs = make(map[string]domain.Message)
		s.messagesByRoom[msg.DealRoomID] = msgs
	}
	if existing, dup := msgs[msg.ID]; dup {
		// The read flag is the one mutable message field and it only flips
		// forward. A duplicate that proves the message read (a resync
		// snapshot covering a messages_read missed while disconnected) must
		// still land the flag.
		if msg.IsRead && !existing.IsRead {
			existing.IsRead = true
			msgs[msg.ID] = existing
		}
		return false
	}
	msgs[msg.ID] = msg
	s.touchLastMessageLocked(msg)
	return true
}

// ReplaceMessage swaps an optimistic temp message for its server-confirmed
// version. If the confirmed copy already arrived via socket the temp entry is
// simply dropped, so the logical message never appears twice.
func (s *Store) ReplaceMessage(roomID, tempID string, confirmed domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messagesByRoom[roomID]
	if msgs == nil {
		msgs = make(map[string]domain.Message)
		s.messagesByRoom[roomID] = msgs
	}
	// The sender's optimistic copy is born read; the server copy is not.
	// Carry the flag over so a just-sent message never counts as unread.
	if temp, ok := msgs[tempID]; ok && temp.IsRead {
		confirmed.IsRead = true
	}
	delete(msgs, tempID)
	s.putMessageLocked(confirmed)
}

// DropMessage removes a message outright. Used to roll back an optimistic
// send the user chose not to retry.
func (s *Store) DropMessage(roomID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msgs := s.messagesByRoom[roomID]; msgs != nil {
		delete(msgs, id)
	}
}

// SetMessageDelivery updates the local delivery phase of an optimistic send.
func (s *Store) SetMessageDelivery(roomID, id string, state domain.DeliveryState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messagesByRoom[roomID]
	msg, ok := msgs[id]
	if !ok {
		return false
	}
	msg.Delivery = state
	msgs[id] = msg
	return true
}

// MarkRead flips the read flag on the given messages, or on every message in
// the room when ids is empty. Unread counts are derived from these flags and
// nothing else.
func (s *Store) MarkRead(roomID string, ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messagesByRoom[roomID]
	flipped := 0
	if len(ids) == 0 {
		for id, msg := range msgs {
			if !msg.IsRead {
				msg.IsRead = true
				msgs[id] = msg
				flipped++
			}
		}
		return flipped
	}
	for _, id := range ids {
		if msg, ok := msgs[id]; ok && !msg.IsRead {
			msg.IsRead = true
			msgs[id] = msg
			flipped++
		}
	}
	return flipped
}

func (s *Store) touchLastMessageLocked(msg domain.Message) {
	room, ok := s.rooms[msg.DealRoomID]
	if !ok {
		return
	}
	if room.LastMessageAt == nil || msg.CreatedAt.After(*room.LastMessageAt) {
		body := msg.Body
		at := msg.CreatedAt
		room.LastMessage = &body
		room.LastMessageAt = &at
	}
}

// UpsertOffer merges an offer snapshot or event, compare-and-swap-if-newer by
// UpdatedAt. Keeps the room's active-offer pointer and the denormalized
// LatestOffer in step. Returns whether the stored state changed.
func (s *Store) UpsertOffer(o domain.Offer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.offers[o.ID]; ok && o.UpdatedAt.Before(existing.UpdatedAt) {
		return false
	}
	cp := o
	s.offers[o.ID] = &cp

	if o.Status.IsTerminal() {
		if s.offersByRoom[o.DealRoomID] == o.ID {
			delete(s.offersByRoom, o.DealRoomID)
		}
	} else {
		s.offersByRoom[o.DealRoomID] = o.ID
	}
	if room, ok := s.rooms[o.DealRoomID]; ok {
		if room.LatestOffer == nil || !o.UpdatedAt.Before(room.LatestOffer.UpdatedAt) {
			latest := o
			room.LatestOffer = &latest
		}
	}
	return true
}

// RestoreOffer undoes an optimistic offer write, but only while that write is
// still what is stored; an offer_updated event that landed mid-request wins.
// Reports whether the restore happened.
func (s *Store) RestoreOffer(prev, optimistic domain.Offer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.offers[prev.ID]
	if !ok || !cur.UpdatedAt.Equal(optimistic.UpdatedAt) || cur.Status != optimistic.Status {
		return false
	}
	cp := prev
	s.offers[prev.ID] = &cp
	if prev.Status.IsTerminal() {
		if s.offersByRoom[prev.DealRoomID] == prev.ID {
			delete(s.offersByRoom, prev.DealRoomID)
		}
	} else {
		s.offersByRoom[prev.DealRoomID] = prev.ID
	}
	return true
}

// RemoveOffer deletes an offer. Used to roll back an optimistic submit the
// server rejected.
func (s *Store) RemoveOffer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return
	}
	delete(s.offers, id)
	if s.offersByRoom[o.DealRoomID] == id {
		delete(s.offersByRoom, o.DealRoomID)
	}
}

// UpsertAuction merges an auction snapshot or event, CAS-if-newer. A closed
// auction never reopens regardless of event order.
func (s *Store) UpsertAuction(a domain.Auction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.auctions[a.ID]
	if ok {
		if a.UpdatedAt.Before(existing.UpdatedAt) {
			return false
		}
		if existing.State == domain.AuctionClosed && a.State != domain.AuctionClosed {
			return false
		}
		if a.CurrentHighestBid < existing.CurrentHighestBid {
			a.CurrentHighestBid = existing.CurrentHighestBid
		}
	}
	cp := a
	s.auctions[a.ID] = &cp
	s.auctionByRoom[a.DealRoomID] = a.ID
	return true
}

// ApplyBid merges an incoming bid: dedup by id, recompute the highest bid
// and the single IsHighest flag. Returns whether the bid was inserted.
func (s *Store) ApplyBid(b domain.Bid) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[b.AuctionID]
	if !ok {
		return false
	}
	merged, highest, inserted := auction.ApplyBid(a, s.bidsByAuction[b.AuctionID], b)
	if !inserted {
		return false
	}
	s.bidsByAuction[b.AuctionID] = merged
	a.CurrentHighestBid = highest
	return true
}

// SetParticipants replaces an auction's roster.
func (s *Store) SetParticipants(auctionID string, roster []domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.Participant, len(roster))
	copy(cp, roster)
	s.participants[auctionID] = cp
}

// SetTyping records (or clears) a typing indicator for a user in a room.
func (s *Store) SetTyping(roomID, userID string, typing bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.typing[roomID]
	if users == nil {
		users = make(map[string]time.Time)
		s.typing[roomID] = users
	}
	if typing {
		users[userID] = now
	} else {
		delete(users, userID)
	}
}

// SetOnline replaces a room's online-user set.
func (s *Store) SetOnline(roomID string, userIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		set[id] = struct{}{}
	}
	s.online[roomID] = set
}

// ClearRoomEphemera drops typing and presence for a room. Entities stay: a
// rejoin reconciles them against a fresh snapshot instead of refetching from
// nothing.
func (s *Store) ClearRoomEphemera(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.typing, roomID)
	delete(s.online, roomID)
}
