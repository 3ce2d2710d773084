package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stockflow",
		Subsystem: "authz",
		Name:      "decisions_total",
		Help:      "Authorization decisions by role and outcome",
	},
	[]string{"role", "decision"},
)

func recordDecision(role Role, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	decisionsTotal.WithLabelValues(role.String(), decision).Inc()
}
