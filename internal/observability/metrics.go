package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	settlementCounter     *prometheus.CounterVec
	rateCheckCounter      *prometheus.CounterVec
	notificationFailures  *prometheus.CounterVec
	idempotencyCounter    *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
	remindersSentCounter  prometheus.Counter
	reconciliationIssues  *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_operations_total",
			Help: "Settlement operations by outcome",
		}, []string{"operation", "outcome"})

		rateCheckCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_rate_checks_total",
			Help: "Advisory exchange rate checks on recorded payouts",
		}, []string{"level"})

		notificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_notification_failures_total",
			Help: "Notifications that could not be delivered",
		}, []string{"event"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		remindersSentCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_payment_reminders_total",
			Help: "Payment reminders sent to unpaid participants",
		})

		reconciliationIssues = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_reconciliation_issues_total",
			Help: "Settlement invariant violations found by reconciliation",
		}, []string{"kind"})

		prometheus.MustRegister(
			httpDurationHistogram,
			settlementCounter,
			rateCheckCounter,
			notificationFailures,
			idempotencyCounter,
			workerRunCounter,
			remindersSentCounter,
			reconciliationIssues,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementSettlementOperation(operation string, err error) {
	if settlementCounter == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	settlementCounter.WithLabelValues(operation, outcome).Inc()
}

func IncrementRateCheck(level string) {
	if rateCheckCounter == nil {
		return
	}
	rateCheckCounter.WithLabelValues(level).Inc()
}

func IncrementNotificationFailure(event string) {
	if notificationFailures == nil {
		return
	}
	notificationFailures.WithLabelValues(event).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func AddRemindersSent(n int) {
	if remindersSentCounter == nil || n <= 0 {
		return
	}
	remindersSentCounter.Add(float64(n))
}

func IncrementReconciliationIssue(kind string) {
	if reconciliationIssues == nil {
		return
	}
	reconciliationIssues.WithLabelValues(kind).Inc()
}
