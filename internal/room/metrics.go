package room

import "expvar"

var (
	metricRoomsCreated    = expvar.NewInt("rooms_created_total")
	metricRoomsDestroyed  = expvar.NewInt("rooms_destroyed_total")
	metricEventsPublished = expvar.NewInt("room_events_published_total")
	metricActionsApplied  = expvar.NewInt("room_actions_applied_total")
	metricActionsRejected = expvar.NewInt("room_actions_rejected_total")
	metricSnapshotsServed = expvar.NewInt("room_snapshots_served_total")
	metricStaleTimers     = expvar.NewInt("room_stale_timer_fires_total")
)
