// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_notifications_total",
			Help: "Total number of notifications dispatched, by channel and status",
		},
		[]string{"channel", "status"},
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_suppressed_total",
			Help: "Notifications suppressed by the preference gate",
		},
		[]string{"reason"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dispatch_duration_seconds",
			Help: "Duration of one notification pipeline pass in seconds",
		},
		[]string{"channel"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_breaker_state",
			Help: "Circuit breaker state per channel (0=closed, 1=half-open, 2=open)",
		},
		[]string{"channel"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_retry_attempts_total",
			Help: "Total retry attempts (including final) per channel",
		},
		[]string{"channel"},
	)

	RealtimeConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_realtime_connections",
			Help: "Active realtime connections by kind",
		},
		[]string{"kind"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_events_consumed_total",
			Help: "Inbound domain events consumed, by outcome",
		},
		[]string{"outcome"},
	)
)
