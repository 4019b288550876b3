// Package metrics defines and registers all custom Prometheus metrics for the
// clinic scheduling API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation; HTTP request metrics come from echoprometheus in the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinic"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "success" or the error code of the failure (e.g. "wrong_password")
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts created accounts.
// Labels:
//   - role: the role of the new account
//   - channel: "self" or "receptionist"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of user accounts created, by role and channel.",
	},
	[]string{"role", "channel"},
)

// ── Appointment metrics ───────────────────────────────────────────────────────

// AppointmentsTotal counts successful appointment mutations.
// Label:
//   - action: "requested", "created", "assigned", "confirmed" or "cancelled"
var AppointmentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "appointments_total",
		Help:      "Total number of appointment mutations, by action.",
	},
	[]string{"action"},
)

// AuditEventsDroppedTotal counts audit events discarded because the
// dispatcher shard was full or stopped.
var AuditEventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Total number of appointment audit events dropped before persistence.",
	},
)

// AuditEventsFailedTotal counts audit events whose write failed.
var AuditEventsFailedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_failed_total",
		Help:      "Total number of appointment audit events that failed to persist.",
	},
)
