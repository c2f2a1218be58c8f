package discovery

import "github.com/prometheus/client_golang/prometheus"

var (
	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wledui_discovery_probes_total",
			Help: "Address probes by outcome (found, miss, canceled).",
		},
		[]string{"outcome"},
	)
	sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wledui_discovery_sweeps_total",
			Help: "Subnet sweeps by result (complete, canceled).",
		},
		[]string{"result"},
	)
	boardsFound = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wledui_discovery_boards_found_total",
		Help: "Boards returned by completed sweeps.",
	})
	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wledui_discovery_sweep_seconds",
		Help:    "Wall time of a /24 sweep.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})
)

func init() {
	prometheus.MustRegister(probesTotal, sweepsTotal, boardsFound, sweepDuration)
}
