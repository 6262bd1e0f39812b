package telemetry

import "github.com/prometheus/client_golang/prometheus"

// NewRegistry creates a Prometheus registry pre-registered with the
// given collectors, plus the standard process/Go runtime collectors.
func NewRegistry(collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewGoCollector())
	for _, c := range collectors {
		reg.MustRegister(c)
	}
	return reg
}

var GatewayConnectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "voxora",
		Subsystem: "gateway",
		Name:      "connections_total",
		Help:      "Total number of WebSocket connections accepted by the gateway.",
	},
)

var GatewaySessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "voxora",
		Subsystem: "gateway",
		Name:      "sessions_active",
		Help:      "Current number of identified gateway sessions.",
	},
)

var GatewayDispatchedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "voxora",
		Subsystem: "gateway",
		Name:      "dispatched_total",
		Help:      "Total number of DISPATCH frames sent, by event name.",
	},
	[]string{"event"},
)

var GatewayCloseTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "voxora",
		Subsystem: "gateway",
		Name:      "close_total",
		Help:      "Total number of connections closed, by close code.",
	},
	[]string{"code"},
)

var GatewaySessionsResumedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "voxora",
		Subsystem: "gateway",
		Name:      "sessions_resumed_total",
		Help:      "Total number of successful RESUME handshakes.",
	},
)

var GatewayLaggedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "voxora",
		Subsystem: "gateway",
		Name:      "lagged_total",
		Help:      "Total number of broadcast payloads dropped for slow-receiving sessions.",
	},
)

var SiaReplayRejectedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "voxora",
		Subsystem: "sia",
		Name:      "replay_rejected_total",
		Help:      "Total number of SIA validations rejected as replay (jti already used).",
	},
)

var SiaValidatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "voxora",
		Subsystem: "sia",
		Name:      "validated_total",
		Help:      "Total number of SIA validation attempts, by result.",
	},
	[]string{"result"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "voxora",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

var PresenceOnlineUsers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "voxora",
		Subsystem: "presence",
		Name:      "online_users",
		Help:      "Current number of users with a non-offline status.",
	},
)

// All returns all Voxora-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		GatewayConnectionsTotal,
		GatewaySessionsActive,
		GatewayDispatchedTotal,
		GatewayCloseTotal,
		GatewaySessionsResumedTotal,
		GatewayLaggedTotal,
		SiaReplayRejectedTotal,
		SiaValidatedTotal,
		HTTPRequestDuration,
		PresenceOnlineUsers,
	}
}
