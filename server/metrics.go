package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codecollab_operations_applied_total",
		Help: "Total edit operations accepted and applied",
	})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codecollab_active_rooms",
		Help: "Rooms currently resident in memory",
	})

	participantsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codecollab_participants_connected",
		Help: "Participants currently joined to rooms",
	})

	analyzeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codecollab_analyze_requests_total",
		Help: "Analysis requests by outcome",
	}, []string{"status"})

	assistRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codecollab_assist_requests_total",
		Help: "Assistant requests by intent and outcome",
	}, []string{"intent", "status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codecollab_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})
)
