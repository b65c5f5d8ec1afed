package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	generationSubsystem = "generation"

	submissionsTotal = "submissions_total"
	webhooksTotal    = "webhooks_total"
	pollsTotal       = "polls_total"

	resultLabel  = "result"
	outcomeLabel = "outcome"
)

// Submission results
const (
	SubmissionAccepted = "accepted"
	SubmissionRejected = "rejected"
	SubmissionFailed   = "failed"
)

// Webhook outcomes
const (
	WebhookApplied      = "applied"
	WebhookDuplicate    = "duplicate"
	WebhookUnknownJob   = "unknown_job"
	WebhookUnauthorized = "unauthorized"
	WebhookMalformed    = "malformed"
)

// Poll outcomes
const (
	PollComplete = "complete"
	PollFailed   = "failed"
	PollTimeout  = "timeout"
)

var submissionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: generationSubsystem,
		Name:      submissionsTotal,
		Help:      "number of generation submissions partitioned by result",
	},
	[]string{resultLabel},
)

var webhooksTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: generationSubsystem,
		Name:      webhooksTotal,
		Help:      "number of completion webhook deliveries partitioned by outcome",
	},
	[]string{outcomeLabel},
)

var pollsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: generationSubsystem,
		Name:      pollsTotal,
		Help:      "number of finished poll loops partitioned by outcome",
	},
	[]string{outcomeLabel},
)

func IncreaseSubmissionsTotalMetric(result string) {
	submissionsTotalMetric.With(prometheus.Labels{resultLabel: result}).Inc()
}

func IncreaseWebhooksTotalMetric(outcome string) {
	webhooksTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func IncreasePollsTotalMetric(outcome string) {
	pollsTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func RegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(submissionsTotalMetric)
	registry.MustRegister(webhooksTotalMetric)
	registry.MustRegister(pollsTotalMetric)
}

func RegisterDefaultMetrics() {
	prometheus.MustRegister(submissionsTotalMetric)
	prometheus.MustRegister(webhooksTotalMetric)
	prometheus.MustRegister(pollsTotalMetric)
}
