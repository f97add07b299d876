package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
)

func seedRoom(s *Store, id string, updatedAt time.Time) domain.DealRoom {
	room := domain.DealRoom{
		ID:        id,
		BuyerID:   "user-buyer",
		SellerID:  "user-seller",
		State:     domain.RoomNegotiation,
		UpdatedAt: updatedAt,
	}
	s.UpsertRoom(room)
	return room
}

func msg(roomID, id string, at time.Time, read bool) domain.Message {
	return domain.Message{
		ID:         id,
		DealRoomID: roomID,
		SenderID:   "user-seller",
		Body:       "body of " + id,
		IsRead:     read,
		CreatedAt:  at,
	}
}

func TestPutMessageDedupsByID(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)

	m := msg("room-1", "m1", now, false)
	if !s.PutMessage(m) {
		t.Fatal("first insert should succeed")
	}
	// Duplicate socket delivery plus REST catch-up of the same id.
	if s.PutMessage(m) {
		t.Fatal("duplicate insert must be a no-op")
	}
	if got := len(s.Messages("room-1")); got != 1 {
		t.Fatalf("message count = %d, want 1", got)
	}
}

func TestDuplicateDeliveryLandsReadFlag(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)

	s.PutMessage(msg("room-1", "m1", now, false))
	// A resync snapshot carries the same message, now read on the server:
	// the messages_read event was missed while disconnected.
	if s.PutMessage(msg("room-1", "m1", now, true)) {
		t.Fatal("duplicate insert must not count as new")
	}
	if got := s.UnreadCount("room-1"); got != 0 {
		t.Fatalf("unread = %d, want 0 after snapshot proves the message read", got)
	}

	// The flag only flips forward: an unread duplicate never un-reads.
	s.PutMessage(msg("room-1", "m1", now, false))
	if got := s.UnreadCount("room-1"); got != 0 {
		t.Fatalf("unread = %d, want 0: read flag must not regress", got)
	}
}

func TestMessagesOrderedByCreatedAt(t *testing.T) {
	s := New()
	base := time.Now()
	seedRoom(s, "room-1", base)

	// Delivered out of order.
	s.PutMessage(msg("room-1", "m3", base.Add(3*time.Second), false))
	s.PutMessage(msg("room-1", "m1", base.Add(1*time.Second), false))
	s.PutMessage(msg("room-1", "m2", base.Add(2*time.Second), false))

	got := s.Messages("room-1")
	for i, want := range []string{"m1", "m2", "m3"} {
		if got[i].ID != want {
			t.Fatalf("position %d = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestReplaceMessageSwapsTempForConfirmed(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)

	tempID := domain.NewTempID()
	temp := msg("room-1", tempID, now, true)
	temp.Delivery = domain.DeliverySending
	s.PutMessage(temp)

	confirmed := msg("room-1", "server-1", now, true)
	s.ReplaceMessage("room-1", tempID, confirmed)

	msgs := s.Messages("room-1")
	if len(msgs) != 1 || msgs[0].ID != "server-1" {
		t.Fatalf("messages = %v, want only server-1", msgs)
	}
}

func TestReplaceMessageWhenConfirmedAlreadyArrived(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)

	tempID := domain.NewTempID()
	s.PutMessage(msg("room-1", tempID, now, true))
	// The socket event beat the REST response.
	s.PutMessage(msg("room-1", "server-1", now, true))

	s.ReplaceMessage("room-1", tempID, msg("room-1", "server-1", now, true))
	if got := len(s.Messages("room-1")); got != 1 {
		t.Fatalf("message count = %d, want 1: temp and server copy must never coexist", got)
	}
}

func TestReplaceMessageKeepsOwnMessagesRead(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)

	tempID := domain.NewTempID()
	temp := msg("room-1", tempID, now, true)
	temp.Delivery = domain.DeliverySending
	s.PutMessage(temp)

	// The server copy comes back unread; the sender's own message stays read.
	s.ReplaceMessage("room-1", tempID, msg("room-1", "server-1", now, false))

	got, ok := s.Message("room-1", "server-1")
	if !ok || !got.IsRead {
		t.Fatalf("confirmed copy = %+v, want IsRead true", got)
	}
	if unread := s.UnreadCount("room-1"); unread != 0 {
		t.Fatalf("unread = %d, want 0: sending a message must not raise the badge", unread)
	}
}

func TestUnreadCountTracksReadFlags(t *testing.T) {
	s := New()
	base := time.Now()
	seedRoom(s, "room-1", base)

	for i := 0; i < 5; i++ {
		s.PutMessage(msg("room-1", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second), i < 2))
	}
	if got := s.UnreadCount("room-1"); got != 3 {
		t.Fatalf("unread = %d, want 3", got)
	}

	s.MarkRead("room-1", []string{"m2"})
	if got := s.UnreadCount("room-1"); got != 2 {
		t.Fatalf("unread after partial read = %d, want 2", got)
	}

	s.MarkRead("room-1", nil)
	if got := s.UnreadCount("room-1"); got != 0 {
		t.Fatalf("unread after read-all = %d, want 0", got)
	}

	// The count always equals the flags in the message list itself.
	unread := 0
	for _, m := range s.Messages("room-1") {
		if !m.IsRead {
			unread++
		}
	}
	if unread != s.UnreadCount("room-1") {
		t.Fatal("unread count drifted from the message list")
	}

	room, _ := s.Room("room-1")
	if room.UnreadCount != 0 {
		t.Fatalf("room selector unread = %d, want 0", room.UnreadCount)
	}
}

func TestUpsertRoomDropsStaleVersions(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)

	newer := domain.DealRoom{ID: "room-1", BuyerID: "user-buyer", SellerID: "user-seller", State: domain.RoomPaymentPending, UpdatedAt: now.Add(time.Second)}
	if !s.UpsertRoom(newer) {
		t.Fatal("newer version must be applied")
	}

	stale := domain.DealRoom{ID: "room-1", BuyerID: "user-buyer", SellerID: "user-seller", State: domain.RoomNegotiation, UpdatedAt: now.Add(-time.Second)}
	if s.UpsertRoom(stale) {
		t.Fatal("stale version must be dropped")
	}
	room, _ := s.Room("room-1")
	if room.State != domain.RoomPaymentPending {
		t.Fatalf("state = %s, want payment_pending", room.State)
	}
}

func TestUpsertRoomKeepsDenormalizedFields(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)
	s.PutMessage(msg("room-1", "m1", now, false))

	before, _ := s.Room("room-1")
	if before.LastMessage == nil {
		t.Fatal("last message should be set by the insert")
	}

	// A state event without the denormalized fields must not wipe them.
	update := domain.DealRoom{ID: "room-1", BuyerID: "user-buyer", SellerID: "user-seller", State: domain.RoomPaymentPending, UpdatedAt: now.Add(time.Second)}
	s.UpsertRoom(update)
	after, _ := s.Room("room-1")
	if after.LastMessage == nil || *after.LastMessage != *before.LastMessage {
		t.Fatal("denormalized last message lost on state update")
	}
}

func TestRestoreRoomUndoesOptimisticWrite(t *testing.T) {
	s := New()
	now := time.Now()
	prev := seedRoom(s, "room-1", now)

	optimistic := prev
	optimistic.State = domain.RoomPaymentPending
	optimistic.UpdatedAt = now.Add(time.Second)
	s.UpsertRoom(optimistic)

	if !s.RestoreRoom(prev, optimistic) {
		t.Fatal("restore should apply while the optimistic write is still stored")
	}
	room, _ := s.Room("room-1")
	if room.State != domain.RoomNegotiation {
		t.Fatalf("state = %s, want negotiation after rollback", room.State)
	}
}

func TestRestoreRoomYieldsToConcurrentEvent(t *testing.T) {
	s := New()
	now := time.Now()
	prev := seedRoom(s, "room-1", now)

	optimistic := prev
	optimistic.State = domain.RoomPaymentPending
	optimistic.UpdatedAt = now.Add(time.Second)
	s.UpsertRoom(optimistic)

	// A deal_state_changed lands while the request is in flight.
	event := prev
	event.State = domain.RoomCancelled
	event.UpdatedAt = now.Add(2 * time.Second)
	s.UpsertRoom(event)

	if s.RestoreRoom(prev, optimistic) {
		t.Fatal("restore must not clobber a newer server event")
	}
	room, _ := s.Room("room-1")
	if room.State != domain.RoomCancelled {
		t.Fatalf("state = %s, want cancelled: the event is newer truth", room.State)
	}
}

func offerFor(roomID string, id string, status domain.OfferStatus, updatedAt time.Time) domain.Offer {
	return domain.Offer{
		ID:           id,
		DealRoomID:   roomID,
		BuyerID:      "user-buyer",
		SellerID:     "user-seller",
		OfferedPrice: 10000,
		Status:       status,
		LastActorID:  "user-buyer",
		UpdatedAt:    updatedAt,
	}
}

func TestUpsertOfferActivePointer(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)

	s.UpsertOffer(offerFor("room-1", "o1", domain.OfferPending, now))
	if _, ok := s.ActiveOffer("room-1"); !ok {
		t.Fatal("pending offer should be active")
	}

	// Stale update dropped.
	if s.UpsertOffer(offerFor("room-1", "o1", domain.OfferCountered, now.Add(-time.Second))) {
		t.Fatal("stale offer update must be dropped")
	}

	// Terminal event clears the active pointer but keeps the offer readable.
	s.UpsertOffer(offerFor("room-1", "o1", domain.OfferDeclined, now.Add(time.Second)))
	if _, ok := s.ActiveOffer("room-1"); ok {
		t.Fatal("declined offer must not stay active")
	}
	if o, ok := s.Offer("o1"); !ok || o.Status != domain.OfferDeclined {
		t.Fatal("terminal offer should remain readable by id")
	}
}

func TestRestoreOfferUndoesOptimisticWrite(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)

	prev := offerFor("room-1", "o1", domain.OfferPending, now)
	s.UpsertOffer(prev)

	optimistic := offerFor("room-1", "o1", domain.OfferAccepted, now.Add(time.Second))
	s.UpsertOffer(optimistic)
	if _, ok := s.ActiveOffer("room-1"); ok {
		t.Fatal("accepted offer must not stay active")
	}

	if !s.RestoreOffer(prev, optimistic) {
		t.Fatal("restore should apply while the optimistic write is still stored")
	}
	o, _ := s.Offer("o1")
	if o.Status != domain.OfferPending {
		t.Fatalf("status = %s, want pending after rollback", o.Status)
	}
	// A non-terminal rollback puts the offer back in the active slot.
	if active, ok := s.ActiveOffer("room-1"); !ok || active.ID != "o1" {
		t.Fatal("restored pending offer should be active again")
	}
}

func TestRestoreOfferYieldsToConcurrentEvent(t *testing.T) {
	s := New()
	now := time.Now()
	seedRoom(s, "room-1", now)

	prev := offerFor("room-1", "o1", domain.OfferPending, now)
	s.UpsertOffer(prev)

	optimistic := offerFor("room-1", "o1", domain.OfferAccepted, now.Add(time.Second))
	s.UpsertOffer(optimistic)

	// An offer_updated lands while the request is in flight.
	s.UpsertOffer(offerFor("room-1", "o1", domain.OfferCountered, now.Add(2*time.Second)))

	if s.RestoreOffer(prev, optimistic) {
		t.Fatal("restore must not clobber a newer server event")
	}
	o, _ := s.Offer("o1")
	if o.Status != domain.OfferCountered {
		t.Fatalf("status = %s, want countered: the event is newer truth", o.Status)
	}
}

func TestUpsertAuctionClosedNeverReopens(t *testing.T) {
	s := New()
	now := time.Now()

	a := domain.Auction{ID: "a1", DealRoomID: "room-1", State: domain.AuctionActive, StartPrice: 100, MinIncrement: 10, EndAt: now.Add(time.Hour), UpdatedAt: now}
	s.UpsertAuction(a)

	a.State = domain.AuctionClosed
	a.UpdatedAt = now.Add(time.Second)
	s.UpsertAuction(a)

	// A delayed "active" event with a newer clock must not reopen it.
	a.State = domain.AuctionActive
	a.UpdatedAt = now.Add(2 * time.Second)
	if s.UpsertAuction(a) {
		t.Fatal("closed auction must never reopen")
	}
	got, _ := s.Auction("a1")
	if got.State != domain.AuctionClosed {
		t.Fatalf("state = %s, want closed", got.State)
	}
}

func TestApplyBidThroughStore(t *testing.T) {
	s := New()
	now := time.Now()
	a := domain.Auction{ID: "a1", DealRoomID: "room-1", State: domain.AuctionActive, StartPrice: 100, MinIncrement: 10, EndAt: now.Add(time.Hour), UpdatedAt: now}
	s.UpsertAuction(a)

	if !s.ApplyBid(domain.Bid{ID: "b1", AuctionID: "a1", BidderID: "u1", Amount: 110, PlacedAt: now}) {
		t.Fatal("first bid should insert")
	}
	if s.ApplyBid(domain.Bid{ID: "b1", AuctionID: "a1", BidderID: "u1", Amount: 110, PlacedAt: now}) {
		t.Fatal("duplicate bid id must be a no-op")
	}
	s.ApplyBid(domain.Bid{ID: "b2", AuctionID: "a1", BidderID: "u2", Amount: 125, PlacedAt: now.Add(time.Second)})

	got, _ := s.Auction("a1")
	if got.CurrentHighestBid != 125 {
		t.Fatalf("highest = %d, want 125", got.CurrentHighestBid)
	}
	highest, ok := s.HighestBid("a1")
	if !ok || highest.ID != "b2" {
		t.Fatalf("highest bid = %v, want b2", highest)
	}
	if bids := s.Bids("a1"); bids[0].ID != "b2" {
		t.Fatalf("bids should list highest first, got %s", bids[0].ID)
	}
}

func TestRoomsSortedByActivity(t *testing.T) {
	s := New()
	base := time.Now()
	seedRoom(s, "room-old", base.Add(-time.Hour))
	seedRoom(s, "room-new", base)
	s.PutMessage(msg("room-old", "m1", base.Add(time.Minute), false))

	rooms := s.Rooms()
	if rooms[0].ID != "room-old" {
		t.Fatalf("room with the latest message should sort first, got %s", rooms[0].ID)
	}
}
