package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcomes recorded by the automation pipeline.
const (
	OutcomeReplied     = "replied"
	OutcomeNoTemplate  = "no_template"
	OutcomeEmptyBody   = "empty_body"
	OutcomeSendFailed  = "send_failed"
	OutcomeNoRecipient = "no_recipient"
	OutcomeFailed      = "failed"
	OutcomeDuplicate   = "duplicate"
)

var (
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codexcity_emails_processed_total",
			Help: "Inbox messages handled by the automation, by outcome",
		},
		[]string{"outcome"},
	)

	AutomationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codexcity_automation_runs_total",
			Help: "Automation runs, by terminal status",
		},
		[]string{"status"}, // completed, skipped, aborted
	)
)

func IncrementEmailProcessed(outcome string) {
	EmailsProcessed.WithLabelValues(outcome).Inc()
}

func IncrementAutomationRun(status string) {
	AutomationRuns.WithLabelValues(status).Inc()
}
