package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TracksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_tracks_submitted_total",
			Help: "Tracks accepted into a space's queue",
		},
		[]string{"space_id"},
	)

	VotesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_votes_cast_total",
			Help: "Votes applied to queued tracks",
		},
		[]string{"space_id", "direction"},
	)

	PlaybackAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playback_advances_total",
			Help: "Playback cursor moves, by trigger",
		},
		[]string{"space_id", "trigger"},
	)

	ConnectedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connected_clients",
			Help: "Currently connected websocket clients per space",
		},
		[]string{"space_id"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_dropped_total",
			Help: "Events dropped because a client's send buffer was full",
		},
		[]string{"space_id"},
	)
)
