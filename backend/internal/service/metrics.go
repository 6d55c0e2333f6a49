package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	internal_errors "github.com/itchan-dev/authd/shared/errors"
)

var (
	sessionOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authd",
			Name:      "session_operations_total",
			Help:      "Session operations by outcome",
		},
		[]string{"op", "result"},
	)

	revocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authd",
			Name:      "revocations_total",
			Help:      "Refresh tokens newly revoked, by reason",
		},
		[]string{"reason"},
	)

	revocationsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "authd",
			Name:      "revocations_purged_total",
			Help:      "Expired revocation entries deleted",
		},
	)
)

func observe(op string, err error) {
	result := "success"
	if err != nil {
		result = string(internal_errors.KindOf(err))
	}
	sessionOpsTotal.WithLabelValues(op, result).Inc()
}
