// Package syncer coordinates the engines, the entity store, the REST client
// and the realtime layer for the UI: it is the only writer the UI ever talks
// to. Every action validates locally first, applies an optimistic mutation,
// calls the network, and reconciles or rolls back on the outcome.
package syncer

import (
	"context"

	"github.com/NaveedAfraz/swapsphere-sync/internal/config"
	"github.com/NaveedAfraz/swapsphere-sync/internal/identity"
	"github.com/NaveedAfraz/swapsphere-sync/internal/realtime"
	"github.com/NaveedAfraz/swapsphere-sync/internal/rest"
	"github.com/NaveedAfraz/swapsphere-sync/internal/store"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/logger"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
)

// Engine holds the app-wide sync state: one store, one REST client, one
// shared socket. Sessions are opened per deal room on top of it.
type Engine struct {
	store      *store.Store
	rest       *rest.Client
	manager    *realtime.Manager
	reconciler *realtime.Reconciler
	cfg        config.SyncConfig
	userID     string
	log        *logger.Logger
}

// New wires an Engine from configuration. The current user id is read from
// the bearer credential.
func New(cfg *config.Config, log *logger.Logger) (*Engine, error) {
	userID, err := identity.UserIDFromToken(cfg.Gateway.Token)
	if err != nil {
		return nil, err
	}
	st := store.New()
	socket := realtime.NewSocket(
		cfg.Gateway.SocketURL,
		cfg.Gateway.Token,
		cfg.Sync.ReconnectBaseDelay,
		cfg.Sync.ReconnectMaxDelay,
		log,
	)
	return &Engine{
		store:      st,
		rest:       rest.NewClient(cfg.Gateway.APIBaseURL, cfg.Gateway.Token, cfg.Sync.RequestTimeout, log),
		manager:    realtime.NewManager(socket, log),
		reconciler: realtime.NewReconciler(st, log),
		cfg:        cfg.Sync,
		userID:     userID,
		log:        log,
	}, nil
}

// NewWithParts wires an Engine from prebuilt collaborators. Used by tests
// and by callers that manage their own socket or client.
func NewWithParts(st *store.Store, rc *rest.Client, mgr *realtime.Manager, cfg config.SyncConfig, userID string, log *logger.Logger) *Engine {
	return &Engine{
		store:      st,
		rest:       rc,
		manager:    mgr,
		reconciler: realtime.NewReconciler(st, log),
		cfg:        cfg,
		userID:     userID,
		log:        log,
	}
}

// UserID is the id the engine acts as.
func (e *Engine) UserID() string { return e.userID }

// RefreshRoomList pulls the authoritative deal-room list for the inbox
// screen. Rooms already open keep their merged state: the list upsert obeys
// the same CAS-if-newer rule as everything else.
func (e *Engine) RefreshRoomList(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	rooms, err := e.rest.ListDealRooms(ctx)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		e.store.UpsertRoom(room)
	}
	return nil
}

// Rooms is the inbox selector: every known room, most recent activity first,
// unread counts recomputed from the message lists.
func (e *Engine) Rooms() []domain.DealRoom {
	return e.store.Rooms()
}
