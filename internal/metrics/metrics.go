// Package metrics expone contadores Prometheus del ciclo de credenciales.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passwordFlowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_password_flow_total",
		Help: "Password reset and change outcomes by flow step",
	}, []string{"flow", "outcome"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_notifications_total",
		Help: "Best-effort notification results by kind and channel",
	}, []string{"kind", "channel", "result"})
)

// PasswordFlow cuenta un resultado de un paso del flujo (por ejemplo "reset_request", "issued").
func PasswordFlow(flow, outcome string) {
	passwordFlowTotal.WithLabelValues(flow, outcome).Inc()
}

// Notification cuenta el resultado de un efecto secundario de notificacion.
func Notification(kind, channel, result string) {
	notificationsTotal.WithLabelValues(kind, channel, result).Inc()
}
