package realtime

import (
	"sync"

	"github.com/NaveedAfraz/swapsphere-sync/internal/metrics"
	"github.com/NaveedAfraz/swapsphere-sync/internal/protocol"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/logger"
)

// Handler consumes inbound frames for one room subscription.
type Handler func(protocol.Envelope)

type subscription struct {
	refs    int
	handler Handler
	resync  func()
}

// Manager owns the shared socket and the set of joined rooms. Joins are
// reference-counted per room id: the connection is dialed on the first join
// and torn down only when the last room leaves, so screens opening and
// closing in quick succession never cause a reconnect storm. On reconnect it
// rejoins every subscribed room and triggers each room's resync, because the
// gateway keeps no queue of events missed while disconnected.
type Manager struct {
	socket *Socket
	log    *logger.Logger

	mu   sync.Mutex
	subs map[string]*subscription
}

func NewManager(socket *Socket, log *logger.Logger) *Manager {
	m := &Manager{
		socket: socket,
		log:    log,
		subs:   make(map[string]*subscription),
	}
	socket.OnEvent = m.dispatch
	socket.OnReconnect = m.rejoinAll
	return m
}

// Join subscribes handler to a room's events. resync is invoked after every
// reconnect while the subscription is live; it may be nil. The first join
// overall dials the gateway.
func (m *Manager) Join(roomID string, handler Handler, resync func()) error {
	m.mu.Lock()
	sub, ok := m.subs[roomID]
	if ok {
		sub.refs++
		if handler != nil {
			sub.handler = handler
		}
		if resync != nil {
			sub.resync = resync
		}
		m.mu.Unlock()
		return nil
	}
	m.subs[roomID] = &subscription{refs: 1, handler: handler, resync: resync}
	m.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()
	if err := m.socket.Connect(); err != nil {
		m.mu.Lock()
		delete(m.subs, roomID)
		m.mu.Unlock()
		metrics.ActiveSubscriptions.Dec()
		return err
	}
	m.emitJoin(roomID)
	return nil
}

// Leave drops one reference to the room. Idempotent: leaving twice, or
// leaving a room never joined, is a no-op. When the last room leaves, the
// connection is closed.
func (m *Manager) Leave(roomID string) {
	m.mu.Lock()
	sub, ok := m.subs[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	sub.refs--
	if sub.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.subs, roomID)
	remaining := len(m.subs)
	m.mu.Unlock()

	metrics.ActiveSubscriptions.Dec()
	if env, err := protocol.NewEnvelope(protocol.EventLeaveDealRoom, roomID, nil); err == nil {
		m.socket.Emit(env)
	}
	if remaining == 0 {
		m.socket.Close()
	}
}

// Emit sends a frame over the shared socket.
func (m *Manager) Emit(env protocol.Envelope) error {
	return m.socket.Emit(env)
}

// Connected reports whether the socket is live.
func (m *Manager) Connected() bool {
	return m.socket.Connected()
}

// dispatch routes an inbound frame to its room's handler. Frames for rooms
// without a live subscription are dropped: an event belonging to a previous
// room's subscription must never reach a newly joined room's state.
func (m *Manager) dispatch(env protocol.Envelope) {
	m.mu.Lock()
	sub, ok := m.subs[env.RoomID]
	var handler Handler
	if ok {
		handler = sub.handler
	}
	m.mu.Unlock()

	if handler == nil {
		metrics.EventsForeignRoom.Inc()
		m.log.Infof("dropping %s event for unsubscribed room %s", env.Type, env.RoomID)
		return
	}
	handler(env)
}

func (m *Manager) emitJoin(roomID string) {
	env, err := protocol.NewEnvelope(protocol.EventJoinDealRoom, roomID, nil)
	if err != nil {
		return
	}
	if err := m.socket.Emit(env); err != nil {
		m.log.Warnf("join emit failed for room %s: %v", roomID, err)
	}
}

// rejoinAll re-subscribes every room after a reconnect and forces each
// room's snapshot resync.
func (m *Manager) rejoinAll() {
	m.mu.Lock()
	rooms := make(map[string]func(), len(m.subs))
	for roomID, sub := range m.subs {
		rooms[roomID] = sub.resync
	}
	m.mu.Unlock()

	for roomID, resync := range rooms {
		m.emitJoin(roomID)
		if resync != nil {
			resync()
		}
	}
}
