package httptransport

import "expvar"

var (
	metricRoomCreateTotal  = expvar.NewInt("room_create_total")
	metricRoomCreateErrors = expvar.NewInt("room_create_errors_total")

	metricSSEConnectionsTotal  = expvar.NewInt("sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("sse_connections_active")
)
