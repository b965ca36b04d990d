package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "travelbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Computed quotes by service and season.",
		},
		[]string{"service", "season"},
	)

	sessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Booking session operations by outcome (ok or refusal reason).",
		},
		[]string{"operation", "outcome"},
	)

	approvalDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Provider approval decisions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	paymentSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_submissions_total",
			Help:      "Booking requests handed to the payment collaborator.",
		},
		[]string{"method", "outcome"},
	)

	ledgerTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_tasks_total",
			Help:      "Ledger outbox tasks by type and final status.",
		},
		[]string{"type", "status"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Admin notifications by event and outcome.",
		},
		[]string{"event", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			quotes,
			sessionTransitions,
			approvalDecisions,
			paymentSubmissions,
			ledgerTasks,
			notifications,
		)
	})
}

func ObserveHTTP(route, code string, took time.Duration) {
	httpRequests.WithLabelValues(route, code).Inc()
	httpDuration.WithLabelValues(route).Observe(took.Seconds())
}

func IncQuote(serviceID string, peak bool) {
	season := "regular"
	if peak {
		season = "peak"
	}
	quotes.WithLabelValues(serviceID, season).Inc()
}

// IncSessionTransition records an operation; outcome is "ok" or a refusal reason.
func IncSessionTransition(operation, outcome string) {
	sessionTransitions.WithLabelValues(operation, outcome).Inc()
}

func IncDecision(action, outcome string) {
	approvalDecisions.WithLabelValues(action, outcome).Inc()
}

func IncPayment(method, outcome string) {
	paymentSubmissions.WithLabelValues(method, outcome).Inc()
}

func IncLedgerTask(taskType, status string) {
	ledgerTasks.WithLabelValues(taskType, status).Inc()
}

func IncNotification(event, outcome string) {
	notifications.WithLabelValues(event, outcome).Inc()
}
