package metrics

import (
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	GRPCClientMetrics = grpcprometheus.NewClientMetrics(
		func(c *prometheus.CounterOpts) {
			c.Namespace = "GridKV"
		},
	)

	TopologyUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "GridKV",
		Name:      "topology_updates_total",
		Help:      "topology pushes applied, by cache",
	}, []string{"cache"})

	IterationBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "GridKV",
		Name:      "iteration_batches_total",
		Help:      "iteration batches served",
	})

	OpenCursors = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "GridKV",
		Name:      "iteration_open_cursors",
		Help:      "live iteration cursors",
	})
)

func init() {
	Registry.MustRegister(
		GRPCClientMetrics,
		TopologyUpdates,
		IterationBatches,
		OpenCursors,
	)
}
