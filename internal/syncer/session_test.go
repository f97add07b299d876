package syncer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/auction"
	"github.com/NaveedAfraz/swapsphere-sync/internal/backendtest"
	"github.com/NaveedAfraz/swapsphere-sync/internal/config"
	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/internal/offer"
	"github.com/NaveedAfraz/swapsphere-sync/internal/realtime"
	"github.com/NaveedAfraz/swapsphere-sync/internal/rest"
	"github.com/NaveedAfraz/swapsphere-sync/internal/store"
	"github.com/NaveedAfraz/swapsphere-sync/internal/syncer"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/logger"
)

func testConfig() config.SyncConfig {
	return config.SyncConfig{
		RequestTimeout:     2 * time.Second,
		BidSafetyBuffer:    2 * time.Second,
		CountdownInterval:  20 * time.Millisecond,
		TypingTTL:          4 * time.Second,
		ReconnectBaseDelay: 50 * time.Millisecond,
		ReconnectMaxDelay:  500 * time.Millisecond,
	}
}

func newEngine(t *testing.T, srv *backendtest.Server, userID string) *syncer.Engine {
	t.Helper()
	log := logger.NewNop()
	token := backendtest.Token(userID)
	socket := realtime.NewSocket(srv.SocketURL(), token, 50*time.Millisecond, 500*time.Millisecond, log)
	return syncer.NewWithParts(
		store.New(),
		rest.NewClient(srv.URL(), token, 2*time.Second, log),
		realtime.NewManager(socket, log),
		testConfig(),
		userID,
		log,
	)
}

func openRoom(t *testing.T, e *syncer.Engine, roomID string) *syncer.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, err := e.OpenRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("OpenRoom(%s): %v", roomID, err)
	}
	t.Cleanup(sess.Close)
	return sess
}

// waitFor polls cond until it holds or the deadline passes. Socket fan-out is
// asynchronous, so every cross-engine assertion goes through here.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func seedNegotiationRoom(srv *backendtest.Server, roomID, buyerID, sellerID string) {
	srv.SeedRoom(domain.DealRoom{
		ID:        roomID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		State:     domain.RoomNegotiation,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
}

func TestSendMessageReplacesOptimisticCopy(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	seedNegotiationRoom(srv, "room-1", "u1", "u2")

	e := newEngine(t, srv, "u1")
	sess := openRoom(t, e, "room-1")

	msg, err := sess.SendMessage(context.Background(), "  hello there  ")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !domain.IsTempID(msg.ID) {
		t.Fatalf("optimistic message id = %q, want a temp id", msg.ID)
	}
	if msg.Body != "hello there" {
		t.Fatalf("body = %q, want trimmed", msg.Body)
	}

	// The confirmation must replace the temp copy, never sit beside it.
	waitFor(t, 3*time.Second, func() bool {
		msgs := sess.Messages()
		return len(msgs) == 1 && !domain.IsTempID(msgs[0].ID)
	}, "confirmed message to replace the optimistic copy")

	if _, err := sess.SendMessage(context.Background(), "   "); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("blank message error = %v, want validation", err)
	}
}

func TestMessageFanOutAndMarkRead(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	seedNegotiationRoom(srv, "room-1", "u1", "u2")

	sender := openRoom(t, newEngine(t, srv, "u1"), "room-1")
	reader := openRoom(t, newEngine(t, srv, "u2"), "room-1")

	if _, err := sender.SendMessage(context.Background(), "is this still available?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool {
		return reader.UnreadCount() == 1
	}, "counterparty to receive the message unread")

	if err := reader.MarkRead(context.Background()); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if got := reader.UnreadCount(); got != 0 {
		t.Fatalf("unread after local MarkRead = %d, want 0", got)
	}
	// The messages_read fan-out settles the sender's view too.
	waitFor(t, 3*time.Second, func() bool {
		msgs := sender.Messages()
		return len(msgs) == 1 && msgs[0].IsRead
	}, "read receipt to reach the sender")
}

func TestOfferNegotiationAcrossTwoUsers(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	seedNegotiationRoom(srv, "room-1", "u1", "u2")

	buyer := openRoom(t, newEngine(t, srv, "u1"), "room-1")
	seller := openRoom(t, newEngine(t, srv, "u2"), "room-1")

	submitted, err := buyer.SubmitOffer(context.Background(), 10000, domain.OfferCash, nil)
	if err != nil {
		t.Fatalf("SubmitOffer: %v", err)
	}
	if submitted.Status != domain.OfferPending || submitted.LastActorID != "u1" {
		t.Fatalf("submitted offer = %+v, want pending by u1", submitted)
	}

	waitFor(t, 3*time.Second, func() bool {
		o, ok := seller.ActiveOffer()
		return ok && o.EffectivePrice() == 10000
	}, "seller to see the pending offer")

	if buyer.MyOfferPosition() != offer.RespondWaiting {
		t.Fatalf("buyer position = %v, want waiting", buyer.MyOfferPosition())
	}
	if seller.MyOfferPosition() != offer.RespondDecide {
		t.Fatalf("seller position = %v, want decide", seller.MyOfferPosition())
	}

	// The buyer may not accept their own standing offer.
	if _, err := buyer.RespondToOffer(context.Background(), syncer.OfferRespondAccept, nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("self-accept error = %v, want validation", err)
	}

	counterAmount := int64(12000)
	countered, err := seller.RespondToOffer(context.Background(), syncer.OfferRespondCounter, &counterAmount)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if countered.Status != domain.OfferCountered || countered.EffectivePrice() != 12000 {
		t.Fatalf("countered offer = %+v, want countered at 12000", countered)
	}

	// The counter flips the turn back to the buyer.
	waitFor(t, 3*time.Second, func() bool {
		o, ok := buyer.ActiveOffer()
		return ok && o.EffectivePrice() == 12000 && buyer.MyOfferPosition() == offer.RespondDecide
	}, "buyer to see the counter and regain the turn")

	accepted, err := buyer.RespondToOffer(context.Background(), syncer.OfferRespondAccept, nil)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != domain.OfferAccepted || accepted.EffectivePrice() != 12000 {
		t.Fatalf("accepted offer = %+v, want accepted at 12000", accepted)
	}

	// Terminal offers leave the active slot on both sides.
	waitFor(t, 3*time.Second, func() bool {
		_, buyerActive := buyer.ActiveOffer()
		_, sellerActive := seller.ActiveOffer()
		return !buyerActive && !sellerActive
	}, "accepted offer to clear both active slots")
}

func TestOnlyOneActiveOfferPerRoom(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	seedNegotiationRoom(srv, "room-1", "u1", "u2")

	buyer := openRoom(t, newEngine(t, srv, "u1"), "room-1")

	if _, err := buyer.SubmitOffer(context.Background(), 5000, domain.OfferCash, nil); err != nil {
		t.Fatalf("first SubmitOffer: %v", err)
	}
	if _, err := buyer.SubmitOffer(context.Background(), 6000, domain.OfferCash, nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("second SubmitOffer error = %v, want validation", err)
	}
}

func TestRoomStateTransitions(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	seedNegotiationRoom(srv, "room-1", "u1", "u2")

	buyer := openRoom(t, newEngine(t, srv, "u1"), "room-1")
	seller := openRoom(t, newEngine(t, srv, "u2"), "room-1")

	// Invalid edge is rejected locally and never reaches the server.
	if _, err := buyer.UpdateRoomState(context.Background(), domain.RoomShipping, nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("negotiation->shipping error = %v, want validation", err)
	}
	if room, _ := buyer.Room(); room.State != domain.RoomNegotiation {
		t.Fatalf("room state after rejected transition = %s, want negotiation", room.State)
	}

	confirmed, err := buyer.UpdateRoomState(context.Background(), domain.RoomPaymentPending, map[string]interface{}{"method": "card"})
	if err != nil {
		t.Fatalf("negotiation->payment_pending: %v", err)
	}
	if confirmed.State != domain.RoomPaymentPending {
		t.Fatalf("confirmed state = %s, want payment_pending", confirmed.State)
	}

	waitFor(t, 3*time.Second, func() bool {
		room, ok := seller.Room()
		return ok && room.State == domain.RoomPaymentPending
	}, "counterparty to see payment_pending")

	if err := buyer.ConfirmPayment(context.Background(), "order-77"); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	room, _ := buyer.Room()
	if room.State != domain.RoomPaymentCompleted || !room.PaymentCompleted || room.PaymentOrderID != "order-77" {
		t.Fatalf("room after payment = %+v, want payment_completed with order-77", room)
	}
}

func seedAuctionRoom(srv *backendtest.Server, roomID string) domain.Auction {
	srv.SeedRoom(domain.DealRoom{
		ID:        roomID,
		BuyerID:   "u1",
		SellerID:  "seller-1",
		State:     domain.RoomNegotiation,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	a := domain.Auction{
		ID:           "auction-1",
		DealRoomID:   roomID,
		SellerUserID: "seller-1",
		State:        domain.AuctionActive,
		StartPrice:   100,
		MinIncrement: 10,
		EndAt:        time.Now().Add(time.Hour),
		UpdatedAt:    time.Now(),
	}
	srv.SeedAuction(a, []domain.Participant{
		{UserID: "u1", Role: domain.RoleBidder},
		{UserID: "u2", Role: domain.RoleBidder},
		{UserID: "seller-1", Role: domain.RoleSeller},
	})
	return a
}

func TestPlaceBidValidationAndUndercut(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	seedAuctionRoom(srv, "room-1")

	sess := openRoom(t, newEngine(t, srv, "u1"), "room-1")

	// Below baseline+increment is rejected before any network call.
	_, err := sess.PlaceBid(context.Background(), 105)
	var rej *auction.Rejection
	if !errors.As(err, &rej) || rej.Reason != auction.ReasonBelowMinimum || rej.MinRequired != 110 {
		t.Fatalf("bid 105 error = %v, want below-minimum with min 110", err)
	}

	bid, err := sess.PlaceBid(context.Background(), 110)
	if err != nil {
		t.Fatalf("bid 110: %v", err)
	}
	if bid.Amount != 110 || bid.BidderID != "u1" {
		t.Fatalf("confirmed bid = %+v", bid)
	}

	waitFor(t, 3*time.Second, func() bool {
		hb, ok := sess.HighestBid()
		return ok && hb.Amount == 110 && hb.BidderID == "u1"
	}, "confirmed bid to become the highest")
	if a, _ := sess.Auction(); a.Baseline() != 110 {
		t.Fatalf("baseline = %d, want 110", a.Baseline())
	}

	// A competing client with a stale view gets the server's conflict answer.
	stale := rest.NewClient(srv.URL(), backendtest.Token("u2"), 2*time.Second, logger.NewNop())
	if _, err := stale.PlaceBid(context.Background(), "auction-1", 115); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("undercut error = %v, want conflict", err)
	}

	// Exactly one bid row: the REST response and the socket event dedup by id.
	if got := len(sess.Bids()); got != 1 {
		t.Fatalf("bid count = %d, want 1", got)
	}
}

func TestSpectatorCannotBid(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	seedAuctionRoom(srv, "room-1")

	sess := openRoom(t, newEngine(t, srv, "u3"), "room-1")

	_, err := sess.PlaceBid(context.Background(), 110)
	var rej *auction.Rejection
	if !errors.As(err, &rej) || rej.Reason != auction.ReasonNotBidder {
		t.Fatalf("spectator bid error = %v, want not-bidder", err)
	}
}

func TestAuctionCloseStopsBiddingAndCountdown(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	seedAuctionRoom(srv, "room-1")

	sess := openRoom(t, newEngine(t, srv, "u1"), "room-1")

	waitFor(t, 3*time.Second, func() bool {
		return sess.CountdownSeconds() > 0
	}, "countdown to start ticking")

	srv.CloseAuction("auction-1")

	waitFor(t, 3*time.Second, func() bool {
		a, ok := sess.Auction()
		return ok && a.State == domain.AuctionClosed && sess.CountdownSeconds() == 0
	}, "auction close to land and pin the countdown at zero")

	_, err := sess.PlaceBid(context.Background(), 200)
	var rej *auction.Rejection
	if !errors.As(err, &rej) || rej.Reason != auction.ReasonAuctionClosed {
		t.Fatalf("bid on closed auction error = %v, want auction-closed", err)
	}
}

func TestRefreshRoomList(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	seedNegotiationRoom(srv, "room-1", "u1", "u2")
	seedNegotiationRoom(srv, "room-2", "u1", "u3")

	e := newEngine(t, srv, "u1")
	if err := e.RefreshRoomList(context.Background()); err != nil {
		t.Fatalf("RefreshRoomList: %v", err)
	}
	if got := len(e.Rooms()); got != 2 {
		t.Fatalf("rooms = %d, want 2", got)
	}
}
