package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/auction"
	"github.com/NaveedAfraz/swapsphere-sync/internal/dealroom"
	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/internal/metrics"
	"github.com/NaveedAfraz/swapsphere-sync/internal/protocol"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
)

// Session is one open deal room: a joined socket subscription, an
// authoritative snapshot, and the imperative actions the UI calls. Close it
// before opening the next room; closing detaches the countdown and the
// subscription synchronously, so no event from this room can leak into a
// room opened afterwards.
type Session struct {
	engine *Engine
	roomID string

	countdownMu sync.Mutex
	countdown   *auction.Countdown
	remaining   atomic.Int64 // seconds

	deliveryMu sync.Mutex
	delivery   map[string]*time.Timer // temp id -> pending failure watch

	placingBid atomic.Bool
	closed     atomic.Bool
	closeOnce  sync.Once
}

// OpenRoom joins the room on the shared socket and fetches the REST snapshot.
// Socket events arriving while the snapshot is in flight are applied too;
// the per-entity merge rules keep the two sources from fighting.
func (e *Engine) OpenRoom(ctx context.Context, roomID string) (*Session, error) {
	s := &Session{engine: e, roomID: roomID}

	handler := e.reconciler.RoomHandler(roomID)
	wrapped := func(env protocol.Envelope) {
		handler(env)
		if env.Type == protocol.EventAuctionUpdated {
			s.syncCountdown()
		}
	}
	resync := func() {
		metrics.ForcedResyncs.Inc()
		rctx, cancel := context.WithTimeout(context.Background(), e.cfg.RequestTimeout)
		defer cancel()
		if err := s.Resync(rctx); err != nil {
			e.log.Warnf("resync after reconnect failed for room %s: %v", roomID, err)
		}
	}
	if err := e.manager.Join(roomID, wrapped, resync); err != nil {
		return nil, err
	}

	if err := s.Resync(ctx); err != nil {
		e.manager.Leave(roomID)
		return nil, err
	}
	return s, nil
}

// Resync refetches the authoritative snapshot and merges it. Called on open,
// after reconnects, and whenever the server proves our view stale.
func (s *Session) Resync(ctx context.Context) error {
	e := s.engine
	snap, err := e.rest.GetDealRoom(ctx, s.roomID)
	if err != nil {
		return err
	}
	msgs, err := e.rest.ListMessages(ctx, s.roomID)
	if err != nil {
		return err
	}
	e.reconciler.ApplySnapshot(realtimeSnapshot(snap, msgs))
	s.syncCountdown()
	return nil
}

// Close leaves the room and stops its timers, countdown and delivery watches
// included, so nothing from this room fires after it returns. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.stopCountdown()
		s.stopDeliveryWatches()
		s.engine.manager.Leave(s.roomID)
		s.engine.store.ClearRoomEphemera(s.roomID)
	})
}

// SendMessage validates, inserts an optimistic message under a temp id, then
// emits over the socket (REST fallback when disconnected). The confirmed
// message replaces the temp copy by client ref; the two never coexist. On
// failure or timeout the message stays visible in a failed state for retry.
func (s *Session) SendMessage(ctx context.Context, text string) (domain.Message, error) {
	e := s.engine
	body := strings.TrimSpace(text)
	if body == "" {
		return domain.Message{}, apperrors.Validation("body", "message is empty")
	}

	temp := domain.Message{
		ID:         domain.NewTempID(),
		DealRoomID: s.roomID,
		SenderID:   e.userID,
		Body:       body,
		IsRead:     true,
		CreatedAt:  time.Now(),
		Delivery:   domain.DeliverySending,
	}
	e.store.PutMessage(temp)

	if err := s.transmitMessage(ctx, temp); err != nil {
		return temp, err
	}
	return temp, nil
}

// RetryMessage re-submits a message previously left in the failed state,
// keeping its temp id so confirmation still replaces the same local copy.
func (s *Session) RetryMessage(ctx context.Context, tempID string) error {
	msg, ok := s.engine.store.Message(s.roomID, tempID)
	if !ok || msg.Delivery != domain.DeliveryFailed {
		return apperrors.Validation("message", "nothing to retry")
	}
	s.engine.store.SetMessageDelivery(s.roomID, tempID, domain.DeliverySending)
	return s.transmitMessage(ctx, msg)
}

func (s *Session) transmitMessage(ctx context.Context, temp domain.Message) error {
	e := s.engine

	if e.manager.Connected() {
		payload := protocol.SendMessagePayload{Body: temp.Body, ClientRef: temp.ID}
		env, err := protocol.NewEnvelope(protocol.EventSendMessage, s.roomID, payload)
		if err == nil && e.manager.Emit(env) == nil {
			s.watchDelivery(temp.ID)
			return nil
		}
	}

	// Socket unavailable: REST fallback.
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	confirmed, err := e.rest.PostMessage(rctx, s.roomID, temp.Body, temp.ID)
	if err != nil {
		e.store.SetMessageDelivery(s.roomID, temp.ID, domain.DeliveryFailed)
		metrics.OptimisticRollbacks.Inc()
		if errors.Is(err, apperrors.ErrNetwork) {
			return err
		}
		return apperrors.Network("send message", err)
	}
	confirmed.Delivery = domain.DeliverySent
	e.store.ReplaceMessage(s.roomID, temp.ID, *confirmed)
	return nil
}

// watchDelivery marks a socket-emitted message failed if no confirmation
// replaces it within the request timeout. The timer lives on the session so
// Close can cancel it before the room is left.
func (s *Session) watchDelivery(tempID string) {
	e := s.engine
	s.deliveryMu.Lock()
	defer s.deliveryMu.Unlock()
	if s.delivery == nil {
		s.delivery = make(map[string]*time.Timer)
	}
	s.delivery[tempID] = time.AfterFunc(e.cfg.RequestTimeout, func() {
		s.deliveryMu.Lock()
		delete(s.delivery, tempID)
		s.deliveryMu.Unlock()
		if s.closed.Load() {
			return
		}
		if msg, ok := e.store.Message(s.roomID, tempID); ok && msg.Delivery == domain.DeliverySending {
			e.store.SetMessageDelivery(s.roomID, tempID, domain.DeliveryFailed)
			metrics.OptimisticRollbacks.Inc()
		}
	})
}

func (s *Session) stopDeliveryWatches() {
	s.deliveryMu.Lock()
	defer s.deliveryMu.Unlock()
	for id, t := range s.delivery {
		t.Stop()
		delete(s.delivery, id)
	}
}

// MarkRead flips every unread message in the room and tells the server.
// Socket first, REST fallback; the converging messages_read event makes the
// local flip safe without rollback bookkeeping.
func (s *Session) MarkRead(ctx context.Context) error {
	e := s.engine
	e.store.MarkRead(s.roomID, nil)

	payload := protocol.MessagesReadPayload{ReaderID: e.userID}
	if env, err := protocol.NewEnvelope(protocol.EventMarkRead, s.roomID, payload); err == nil {
		if e.manager.Emit(env) == nil {
			return nil
		}
	}
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	return e.rest.MarkMessagesRead(rctx, s.roomID, nil)
}

// Typing emits a best-effort typing indicator; silence is acceptable.
func (s *Session) Typing(active bool) {
	e := s.engine
	eventType := protocol.EventTypingStop
	if active {
		eventType = protocol.EventTypingStart
	}
	payload := protocol.TypingPayload{UserID: e.userID, Typing: active}
	if env, err := protocol.NewEnvelope(eventType, s.roomID, payload); err == nil {
		e.manager.Emit(env)
	}
}

// UpdateRoomState validates the transition locally, applies it
// optimistically, and confirms over REST. Invalid edges never reach the
// network; network failures roll the room back; conflicts force a resync.
func (s *Session) UpdateRoomState(ctx context.Context, target domain.RoomState, metadata map[string]interface{}) (*domain.DealRoom, error) {
	e := s.engine
	prev, ok := e.store.Room(s.roomID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	next, err := dealroom.Transition(prev, target, metadata, time.Now())
	if err != nil {
		return nil, err
	}
	e.store.UpsertRoom(*next)

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	confirmed, err := e.rest.UpdateRoomState(rctx, s.roomID, target, metadata)
	if err != nil {
		// Roll back only while our optimistic write is still what is stored;
		// a deal_state_changed that landed mid-request stays.
		if e.store.RestoreRoom(*prev, *next) {
			metrics.OptimisticRollbacks.Inc()
		}
		if errors.Is(err, apperrors.ErrConflict) {
			s.forceResync()
		}
		return nil, err
	}
	e.store.UpsertRoom(*confirmed)
	return confirmed, nil
}

// ConfirmPayment records the payment collaborator's capture result. The flag
// is only ever set here, never inferred from room state.
func (s *Session) ConfirmPayment(ctx context.Context, orderID string) error {
	e := s.engine
	if orderID == "" {
		return apperrors.Validation("order_id", "missing payment order id")
	}
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	confirmed, err := e.rest.ConfirmPayment(rctx, s.roomID, orderID)
	if err != nil {
		return err
	}
	e.store.UpsertRoom(*confirmed)
	e.store.SetPayment(s.roomID, orderID, true)
	return nil
}

func (s *Session) forceResync() {
	metrics.ForcedResyncs.Inc()
	ctx, cancel := context.WithTimeout(context.Background(), s.engine.cfg.RequestTimeout)
	defer cancel()
	if err := s.Resync(ctx); err != nil {
		s.engine.log.Warnf("forced resync failed for room %s: %v", s.roomID, err)
	}
}
