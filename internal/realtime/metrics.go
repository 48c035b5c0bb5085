package realtime

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedUsers es el numero de identidades con conexion registrada.
	ConnectedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "timeoff",
			Subsystem: "realtime",
			Name:      "connected_users",
			Help:      "Number of identities with a live connection",
		},
	)

	// DeliveriesTotal cuenta entregas salientes por resultado.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timeoff",
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Total number of outbound frames by result",
		},
		[]string{"result"},
	)

	// HandshakeRejectionsTotal cuenta handshakes rechazados por close code.
	HandshakeRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timeoff",
			Subsystem: "realtime",
			Name:      "handshake_rejections_total",
			Help:      "Total number of rejected handshakes by close code",
		},
		[]string{"code"},
	)
)

func recordDelivery(ok bool) {
	if ok {
		DeliveriesTotal.WithLabelValues("sent").Inc()
		return
	}
	DeliveriesTotal.WithLabelValues("failed").Inc()
}

func recordRejection(code CloseCode) {
	HandshakeRejectionsTotal.WithLabelValues(strconv.Itoa(int(code))).Inc()
}
