package realtime

import (
	"encoding/json"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/internal/metrics"
	"github.com/NaveedAfraz/swapsphere-sync/internal/protocol"
	"github.com/NaveedAfraz/swapsphere-sync/internal/store"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/logger"
)

// Reconciler merges server-authoritative data (socket events and REST
// snapshots) into the entity store without duplication or regression.
// Ordering is resolved per entity id: messages and bids insert-if-absent,
// rooms/offers/auctions compare-and-swap-if-newer by their UpdatedAt. Arrival
// order therefore does not matter; a snapshot and a socket push racing for
// the same entity converge either way.
type Reconciler struct {
	store *store.Store
	log   *logger.Logger
}

func NewReconciler(st *store.Store, log *logger.Logger) *Reconciler {
	return &Reconciler{store: st, log: log}
}

// RoomHandler returns a Handler bound to one room id. Events tagged with any
// other room id are dropped before touching the store, which keeps a stale
// subscription from bleeding into a newly joined room.
func (r *Reconciler) RoomHandler(roomID string) Handler {
	return func(env protocol.Envelope) {
		if env.RoomID != roomID {
			metrics.EventsForeignRoom.Inc()
			return
		}
		r.Apply(env)
	}
}

// Apply merges one inbound frame into the store.
func (r *Reconciler) Apply(env protocol.Envelope) {
	applied := false
	switch env.Type {
	case protocol.EventNewMessage:
		var p protocol.NewMessagePayload
		if !r.decode(env, &p) {
			return
		}
		if p.ClientRef != "" {
			r.store.ReplaceMessage(env.RoomID, p.ClientRef, p.Message)
			applied = true
		} else if r.store.PutMessage(p.Message) {
			applied = true
		} else {
			metrics.EventsDeduped.Inc()
		}

	case protocol.EventMessagesRead:
		var p protocol.MessagesReadPayload
		if !r.decode(env, &p) {
			return
		}
		r.store.MarkRead(env.RoomID, p.MessageIDs)
		applied = true

	case protocol.EventDealStateChanged:
		var p protocol.DealStateChangedPayload
		if !r.decode(env, &p) {
			return
		}
		if p.Room.UpdatedAt.IsZero() {
			p.Room.UpdatedAt = env.Timestamp
		}
		if r.store.UpsertRoom(p.Room) {
			applied = true
		} else {
			metrics.EventsDroppedStale.Inc()
		}

	case protocol.EventOfferUpdated:
		var p protocol.OfferUpdatedPayload
		if !r.decode(env, &p) {
			return
		}
		if p.Offer.UpdatedAt.IsZero() {
			p.Offer.UpdatedAt = env.Timestamp
		}
		if r.store.UpsertOffer(p.Offer) {
			applied = true
		} else {
			metrics.EventsDroppedStale.Inc()
		}

	case protocol.EventNewBid:
		var p protocol.NewBidPayload
		if !r.decode(env, &p) {
			return
		}
		if r.store.ApplyBid(p.Bid) {
			applied = true
		} else {
			metrics.EventsDeduped.Inc()
		}

	case protocol.EventAuctionUpdated:
		var p protocol.AuctionUpdatedPayload
		if !r.decode(env, &p) {
			return
		}
		if p.Auction.UpdatedAt.IsZero() {
			p.Auction.UpdatedAt = env.Timestamp
		}
		if r.store.UpsertAuction(p.Auction) {
			applied = true
		} else {
			metrics.EventsDroppedStale.Inc()
		}
		if len(p.Participants) > 0 {
			r.store.SetParticipants(p.Auction.ID, p.Participants)
		}

	case protocol.EventUserTyping:
		var p protocol.TypingPayload
		if !r.decode(env, &p) {
			return
		}
		r.store.SetTyping(env.RoomID, p.UserID, p.Typing, time.Now())
		applied = true

	case protocol.EventOnlineUsers:
		var p protocol.OnlineUsersPayload
		if !r.decode(env, &p) {
			return
		}
		r.store.SetOnline(env.RoomID, p.UserIDs)
		applied = true

	default:
		r.log.Infof("ignoring unknown event type %q", env.Type)
		return
	}

	if applied {
		metrics.EventsApplied.WithLabelValues(env.Type).Inc()
	}
}

// Snapshot is the authoritative REST view of one deal room.
type Snapshot struct {
	Room         *domain.DealRoom
	Messages     []domain.Message
	Offer        *domain.Offer
	Auction      *domain.Auction
	Bids         []domain.Bid
	Participants []domain.Participant
}

// ApplySnapshot merges a REST snapshot through the same per-entity rules as
// socket events, so events that arrived while the snapshot was in flight are
// neither lost nor double-applied.
func (r *Reconciler) ApplySnapshot(snap Snapshot) {
	if snap.Room != nil {
		r.store.UpsertRoom(*snap.Room)
	}
	if snap.Auction != nil {
		r.store.UpsertAuction(*snap.Auction)
	}
	for _, m := range snap.Messages {
		r.store.PutMessage(m)
	}
	if snap.Offer != nil {
		r.store.UpsertOffer(*snap.Offer)
	}
	for _, b := range snap.Bids {
		r.store.ApplyBid(b)
	}
	if snap.Auction != nil && len(snap.Participants) > 0 {
		r.store.SetParticipants(snap.Auction.ID, snap.Participants)
	}
}

func (r *Reconciler) decode(env protocol.Envelope, out interface{}) bool {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		r.log.Warnf("malformed %s payload: %v", env.Type, err)
		return false
	}
	return true
}
