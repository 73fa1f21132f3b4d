package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Events delivered to the router, by event type and outcome (ok, failed, undecodable).
	EventsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_events_routed_total",
			Help: "Task lifecycle events received by the event router",
		},
		[]string{"event_type", "outcome"},
	)

	HandlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_handler_failures_total",
			Help: "Failures raised by individual event handlers",
		},
		[]string{"handler"},
	)

	RecurringInstancesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recurring_instances_created_total",
			Help: "Task instances generated from recurring rules",
		},
	)

	RemindersPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_published_total",
			Help: "Reminder events published by the reminder scanner",
		},
		[]string{"type"},
	)

	ReminderScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_scan_duration_seconds",
			Help:    "Duration of one reminder scan",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Events that could not be handed to the broker",
		},
		[]string{"topic"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_notifications_total",
			Help: "Reminder notifications by outcome (sent, suppressed, failed)",
		},
		[]string{"outcome"},
	)
)

func RecordEventRouted(eventType, outcome string) {
	EventsRouted.WithLabelValues(eventType, outcome).Inc()
}

func RecordHandlerFailure(handler string) {
	HandlerFailures.WithLabelValues(handler).Inc()
}

func IncrementRecurringInstances() {
	RecurringInstancesCreated.Inc()
}

func RecordReminderPublished(reminderType string) {
	RemindersPublished.WithLabelValues(reminderType).Inc()
}

func RecordReminderScan(duration time.Duration) {
	ReminderScanDuration.Observe(duration.Seconds())
}

func RecordPublishFailure(topic string) {
	PublishFailures.WithLabelValues(topic).Inc()
}

func RecordNotification(outcome string) {
	NotificationsSent.WithLabelValues(outcome).Inc()
}
