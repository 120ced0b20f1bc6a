package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeFallback = "fallback"
)

var deliveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stayflow_delivery_total",
	Help: "Outbound WhatsApp sends by channel, message kind and outcome.",
}, []string{"channel", "kind", "outcome"})

func observe(channel, kind, outcome string) {
	deliveryTotal.WithLabelValues(channel, kind, outcome).Inc()
}
