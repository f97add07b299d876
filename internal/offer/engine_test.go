package offer

import (
	"errors"
	"testing"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
)

const (
	buyer  = "user-buyer"
	seller = "user-seller"
)

func submitted(t *testing.T, price int64) *domain.Offer {
	t.Helper()
	o, events, err := Submit(SubmitParams{
		DealRoomID: "room-1",
		BuyerID:    buyer,
		SellerID:   seller,
		ActorID:    buyer,
		Price:      price,
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != EventSubmitted {
		t.Fatalf("expected a single %s event, got %v", EventSubmitted, events)
	}
	return o
}

func TestNegotiationRoundTrip(t *testing.T) {
	now := time.Now()
	o := submitted(t, 10000)

	if o.Status != domain.OfferPending || o.LastActorID != buyer {
		t.Fatalf("fresh offer: status=%s lastActor=%s", o.Status, o.LastActorID)
	}

	countered, events, err := Counter(o, seller, 12000, now)
	if err != nil {
		t.Fatal(err)
	}
	if countered.Status != domain.OfferCountered {
		t.Fatalf("status = %s, want countered", countered.Status)
	}
	if countered.CounterAmount == nil || *countered.CounterAmount != 12000 {
		t.Fatalf("counter amount = %v, want 12000", countered.CounterAmount)
	}
	if countered.LastActorID != seller {
		t.Fatalf("last actor = %s, want seller", countered.LastActorID)
	}
	if countered.EffectivePrice() != 12000 {
		t.Fatalf("effective price = %d, want 12000", countered.EffectivePrice())
	}
	if len(events) != 1 || events[0].Type != EventCountered {
		t.Fatalf("events = %v", events)
	}

	accepted, _, err := Accept(countered, buyer, now)
	if err != nil {
		t.Fatal(err)
	}
	if accepted.Status != domain.OfferAccepted {
		t.Fatalf("status = %s, want accepted", accepted.Status)
	}
	if *accepted.CounterAmount != 12000 {
		t.Fatalf("accepted counter amount = %d, want 12000", *accepted.CounterAmount)
	}

	// Terminal states are immutable.
	if _, _, err := Counter(accepted, seller, 9000, now); !errors.Is(err, apperrors.ErrTerminalState) {
		t.Fatalf("counter on accepted offer: want terminal error, got %v", err)
	}
	if _, _, err := Accept(accepted, seller, now); !errors.Is(err, apperrors.ErrTerminalState) {
		t.Fatalf("accept on accepted offer: want terminal error, got %v", err)
	}
	if _, _, err := Withdraw(accepted, buyer, now); !errors.Is(err, apperrors.ErrTerminalState) {
		t.Fatalf("withdraw on accepted offer: want terminal error, got %v", err)
	}
}

func TestAcceptRequiresCounterparty(t *testing.T) {
	now := time.Now()
	o := submitted(t, 10000)

	// The buyer made the last change; the buyer cannot accept their own offer.
	if _, _, err := Accept(o, buyer, now); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("self-accept: want validation error, got %v", err)
	}
	if _, _, err := Accept(o, seller, now); err != nil {
		t.Fatalf("counterparty accept: %v", err)
	}

	// After a seller counter, the turn flips.
	countered, _, err := Counter(o, seller, 11000, now)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := Accept(countered, seller, now); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("seller accepting own counter: want validation error, got %v", err)
	}
	if _, _, err := Accept(countered, buyer, now); err != nil {
		t.Fatalf("buyer accepting seller counter: %v", err)
	}
}

func TestWithdrawOnlyByLastActor(t *testing.T) {
	now := time.Now()
	o := submitted(t, 10000)

	if _, _, err := Withdraw(o, seller, now); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("seller withdrawing buyer's offer: want validation error, got %v", err)
	}
	withdrawn, _, err := Withdraw(o, buyer, now)
	if err != nil {
		t.Fatal(err)
	}
	if withdrawn.Status != domain.OfferWithdrawn {
		t.Fatalf("status = %s, want withdrawn", withdrawn.Status)
	}
}

func TestStrangersAreRejected(t *testing.T) {
	now := time.Now()
	o := submitted(t, 10000)
	for _, op := range []func() error{
		func() error { _, _, err := Counter(o, "user-lurker", 11000, now); return err },
		func() error { _, _, err := Accept(o, "user-lurker", now); return err },
		func() error { _, _, err := Decline(o, "user-lurker", now); return err },
	} {
		if err := op(); !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("stranger mutation: want validation error, got %v", err)
		}
	}
}

func TestExpiryIsDerivedNotStored(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	o := submitted(t, 10000)
	o.ExpiresAt = &past

	if got := o.LogicalStatus(now); got != domain.OfferExpired {
		t.Fatalf("logical status = %s, want expired", got)
	}
	// The stored status is untouched; only the view changes.
	if o.Status != domain.OfferPending {
		t.Fatalf("stored status = %s, want pending", o.Status)
	}
	// But mutation of a logically expired offer is refused.
	if _, _, err := Accept(o, seller, now); !errors.Is(err, apperrors.ErrTerminalState) {
		t.Fatalf("accept on expired offer: want terminal error, got %v", err)
	}

	future := now.Add(time.Hour)
	o.ExpiresAt = &future
	if got := o.LogicalStatus(now); got != domain.OfferPending {
		t.Fatalf("logical status = %s, want pending", got)
	}
}

func TestResponseFor(t *testing.T) {
	now := time.Now()
	o := submitted(t, 10000)

	if got := ResponseFor(o, buyer, now); got != RespondWaiting {
		t.Fatalf("buyer position = %s, want waiting", got)
	}
	if got := ResponseFor(o, seller, now); got != RespondDecide {
		t.Fatalf("seller position = %s, want decide", got)
	}
	if got := ResponseFor(o, "user-lurker", now); got != RespondNone {
		t.Fatalf("stranger position = %s, want none", got)
	}

	countered, _, err := Counter(o, seller, 11000, now)
	if err != nil {
		t.Fatal(err)
	}
	if got := ResponseFor(countered, buyer, now); got != RespondDecide {
		t.Fatalf("buyer position after counter = %s, want decide", got)
	}

	declined, _, err := Decline(countered, buyer, now)
	if err != nil {
		t.Fatal(err)
	}
	if got := ResponseFor(declined, buyer, now); got != RespondNone {
		t.Fatalf("position on terminal offer = %s, want none", got)
	}
}

func TestSubmitValidation(t *testing.T) {
	p := SubmitParams{DealRoomID: "room-1", BuyerID: buyer, SellerID: seller, ActorID: buyer}
	if _, _, err := Submit(p, time.Now()); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("zero price: want validation error, got %v", err)
	}
	p.Price = 5000
	p.ActorID = "user-lurker"
	if _, _, err := Submit(p, time.Now()); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("stranger actor: want validation error, got %v", err)
	}
}
