package bot

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Command outcomes used as the "outcome" label.
const (
	outcomeOK        = "ok"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeError     = "error"
	outcomeUnknown   = "unknown"
)

var (
	// commandsTotal counts handled slash commands by name and outcome.
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_commands_total",
			Help: "Total number of slash commands handled.",
		},
		[]string{"command", "outcome"},
	)

	// commandDuration records end-to-end handling time per command.
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkin_command_duration_seconds",
			Help:    "Duration of slash command handling in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// rendersTotal counts status renders by outcome (ok/error).
	rendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_renders_total",
			Help: "Total number of status board renders.",
		},
		[]string{"outcome"},
	)

	// staleDeletesTotal counts what happened to superseded status messages.
	staleDeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_stale_deletes_total",
			Help: "Superseded status messages by deletion result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal, commandDuration, rendersTotal, staleDeletesTotal)
}

// commandLabel bounds the command label to the known command set.
func commandLabel(name string) string {
	switch name {
	case CmdCheckin, CmdCheckout, CmdStatus:
		return name
	default:
		return outcomeUnknown
	}
}
