package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapsync_events_applied_total",
		Help: "Server events merged into the entity store, by event type.",
	}, []string{"type"})

	EventsDroppedStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_events_dropped_stale_total",
		Help: "Events discarded because a newer version of the entity was already stored.",
	})

	EventsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_events_deduped_total",
		Help: "Duplicate message/bid deliveries ignored by id.",
	})

	EventsForeignRoom = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_events_foreign_room_total",
		Help: "Events rejected because their room id did not match the subscription.",
	})

	SocketReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_socket_reconnects_total",
		Help: "Realtime gateway reconnect attempts.",
	})

	OptimisticRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_optimistic_rollbacks_total",
		Help: "Optimistic local mutations rolled back after failure or timeout.",
	})

	ForcedResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_forced_resyncs_total",
		Help: "Full snapshot refetches forced by conflicts or reconnects.",
	})

	BidsRejectedLocally = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapsync_bids_rejected_locally_total",
		Help: "Bids blocked by client-side validation before any request was sent.",
	}, []string{"reason"})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapsync_active_room_subscriptions",
		Help: "Rooms currently joined on the shared socket connection.",
	})
)
