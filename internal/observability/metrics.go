package observability

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimulationCollector bundles Prometheus metrics for simulation runs. It
// satisfies core.MetricsRecorder.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	Runs               *prometheus.CounterVec
	Turns              *prometheus.HistogramVec
	Moves              *prometheus.CounterVec
	ParcelsDelivered   *prometheus.CounterVec
	ParcelsOutstanding *prometheus.GaugeVec
}

// NewSimulationCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_runs_total",
		Help: "Total number of finished simulation runs, labeled by robot and outcome.",
	}, []string{"robot", "outcome"}), "sim_runs_total")
	if err != nil {
		return nil, err
	}

	turns, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_turns",
		Help:    "Turns taken per finished simulation run.",
		Buckets: []float64{0, 5, 10, 15, 20, 30, 50, 75, 100, 200, 500},
	}, []string{"robot"}), "sim_turns")
	if err != nil {
		return nil, err
	}

	moves, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_moves_total",
		Help: "Total number of robot moves, labeled by robot and whether the move was legal.",
	}, []string{"robot", "legal"}), "sim_moves_total")
	if err != nil {
		return nil, err
	}

	delivered, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_parcels_delivered_total",
		Help: "Total number of parcels delivered, labeled by robot.",
	}, []string{"robot"}), "sim_parcels_delivered_total")
	if err != nil {
		return nil, err
	}

	outstanding, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_parcels_outstanding",
		Help: "Parcels still awaiting delivery after the latest move, labeled by robot.",
	}, []string{"robot"}), "sim_parcels_outstanding")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:           gatherer,
		Runs:               runs,
		Turns:              turns,
		Moves:              moves,
		ParcelsDelivered:   delivered,
		ParcelsOutstanding: outstanding,
	}, nil
}

// ObserveMove records one robot move.
func (c *SimulationCollector) ObserveMove(robot string, legal bool, delivered, remaining int) {
	if c == nil {
		return
	}
	c.Moves.WithLabelValues(robot, strconv.FormatBool(legal)).Inc()
	if delivered > 0 {
		c.ParcelsDelivered.WithLabelValues(robot).Add(float64(delivered))
	}
	c.ParcelsOutstanding.WithLabelValues(robot).Set(float64(remaining))
}

// ObserveRun records a finished run. Only delivered runs feed the turns
// histogram; aborted runs would skew it.
func (c *SimulationCollector) ObserveRun(robot, outcome string, turns int) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(robot, outcome).Inc()
	if outcome == "delivered" {
		c.Turns.WithLabelValues(robot).Observe(float64(turns))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
