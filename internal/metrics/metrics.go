package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	waitlistOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_waitlist_operations_total",
			Help: "Waitlist joins and leaves by outcome",
		},
		[]string{"operation", "result"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_invitation_transitions_total",
			Help: "Invitation lifecycle transitions",
		},
		[]string{"to"},
	)

	invitationsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_invitations_issued_total",
			Help: "Invitations issued by the lottery and replacement draws",
		},
		[]string{"kind"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_notifications_total",
			Help: "Notification requests by group and outcome",
		},
		[]string{"group", "outcome"},
	)

	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_deliveries_total",
			Help: "Per-recipient delivery attempts",
		},
		[]string{"channel", "result"},
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admission_scan_duration_seconds",
			Help:    "Duration of background scans",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"scan"},
	)

	backgroundErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_background_errors_total",
			Help: "Errors swallowed by background processing, retried next cycle",
		},
		[]string{"component"},
	)

	httpRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admission_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	activeEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "admission_active_events",
			Help: "Events evaluated by the last scan",
		},
	)
)

func WaitlistOperation(operation, result string) {
	waitlistOperations.WithLabelValues(operation, result).Inc()
}

func Transition(to string) {
	transitions.WithLabelValues(to).Inc()
}

func InvitationsIssued(kind string, n int) {
	invitationsIssued.WithLabelValues(kind).Add(float64(n))
}

func Notification(group, outcome string) {
	notifications.WithLabelValues(group, outcome).Inc()
}

func Delivery(channel, result string) {
	deliveries.WithLabelValues(channel, result).Inc()
}

func ObserveScan(scan string, started time.Time) {
	scanDuration.WithLabelValues(scan).Observe(time.Since(started).Seconds())
}

func BackgroundError(component string) {
	backgroundErrors.WithLabelValues(component).Inc()
}

func ActiveEvents(n int) {
	activeEvents.Set(float64(n))
}

func HTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
