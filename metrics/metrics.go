package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts gateway webhook requests by event type and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerdesk",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total payment webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "careerdesk",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Payment webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// RedirectOutcomes counts payment redirect results by outcome kind.
	RedirectOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerdesk",
		Subsystem: "billing",
		Name:      "redirect_outcomes_total",
		Help:      "Payment redirect callbacks by outcome.",
	}, []string{"outcome"})

	// SignatureFailures counts rejected gateway signatures by path.
	SignatureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerdesk",
		Subsystem: "billing",
		Name:      "signature_failures_total",
		Help:      "Gateway signature verification failures by path.",
	}, []string{"path"})

	// PaymentsApplied counts payments that changed an entitlement, by source.
	PaymentsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerdesk",
		Subsystem: "billing",
		Name:      "payments_applied_total",
		Help:      "Payments applied to entitlements by source and whether they were duplicates.",
	}, []string{"source", "duplicate"})

	// TransitionsTotal counts plan transitions by operation and result.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerdesk",
		Subsystem: "entitlement",
		Name:      "transitions_total",
		Help:      "Plan transitions by operation and result.",
	}, []string{"op", "result"})

	// CreditsConsumed counts credits taken from free accounts.
	CreditsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "careerdesk",
		Subsystem: "entitlement",
		Name:      "credits_consumed_total",
		Help:      "Credits decremented from free accounts.",
	})

	// CreditsRefunded counts reserved credits returned after a failed AI call.
	CreditsRefunded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "careerdesk",
		Subsystem: "entitlement",
		Name:      "credits_refunded_total",
		Help:      "Reserved credits refunded after a failed flow.",
	})

	// AIRequests counts metered AI flow invocations by feature and outcome.
	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerdesk",
		Subsystem: "ai",
		Name:      "requests_total",
		Help:      "AI flow invocations by feature and outcome.",
	}, []string{"feature", "outcome"})

	// PlansExpired counts paid plans returned to free by the plan monitor.
	PlansExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "careerdesk",
		Subsystem: "entitlement",
		Name:      "plans_expired_total",
		Help:      "Paid plans expired by the plan monitor.",
	})
)
