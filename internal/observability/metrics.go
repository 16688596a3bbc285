// Package observability wires Prometheus metrics and OpenTelemetry tracing
// into deployments.
package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecordtopo/internal/domain"
)

// DeploymentCollector bundles Prometheus metrics for domain lifecycles and
// the emulated topology.
type DeploymentCollector struct {
	gatherer prometheus.Gatherer

	DomainState    *prometheus.GaugeVec
	Transitions    *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	ExportDuration *prometheus.HistogramVec

	Switches prometheus.Gauge
	Hosts    prometheus.Gauge
	Links    prometheus.Gauge
}

// NewDeploymentCollector registers deployment metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewDeploymentCollector(reg prometheus.Registerer) (*DeploymentCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	state, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ecord_domain_state",
		Help: "Lifecycle state of each domain; 1 for the current state, 0 otherwise.",
	}, []string{"domain", "state"}), "ecord_domain_state")
	if err != nil {
		return nil, err
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecord_domain_transitions_total",
		Help: "Total number of domain lifecycle transitions, labeled by target state.",
	}, []string{"to"}), "ecord_domain_transitions_total")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecord_phase_failures_total",
		Help: "Total number of failed deployment phases, labeled by phase.",
	}, []string{"phase"}), "ecord_phase_failures_total")
	if err != nil {
		return nil, err
	}

	exports, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecord_export_duration_seconds",
		Help:    "Segment-routing document export latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"format"}), "ecord_export_duration_seconds")
	if err != nil {
		return nil, err
	}

	switches, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ecord_topology_switches",
		Help: "Current number of switches in the emulated topology.",
	}), "ecord_topology_switches")
	if err != nil {
		return nil, err
	}
	hosts, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ecord_topology_hosts",
		Help: "Current number of hosts in the emulated topology.",
	}), "ecord_topology_hosts")
	if err != nil {
		return nil, err
	}
	links, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ecord_topology_links",
		Help: "Current number of links in the emulated topology.",
	}), "ecord_topology_links")
	if err != nil {
		return nil, err
	}

	return &DeploymentCollector{
		gatherer:       gatherer,
		DomainState:    state,
		Transitions:    transitions,
		Failures:       failures,
		ExportDuration: exports,
		Switches:       switches,
		Hosts:          hosts,
		Links:          links,
	}, nil
}

// RecordTransition marks a domain as having entered state to.
func (c *DeploymentCollector) RecordTransition(domainID int, to domain.State) {
	if c == nil {
		return
	}
	id := strconv.Itoa(domainID)
	for _, s := range domain.States {
		v := 0.0
		if s == to {
			v = 1
		}
		c.DomainState.WithLabelValues(id, string(s)).Set(v)
	}
	c.Transitions.WithLabelValues(string(to)).Inc()
}

// RecordFailure counts a failed phase.
func (c *DeploymentCollector) RecordFailure(phase string) {
	if c == nil {
		return
	}
	c.Failures.WithLabelValues(phase).Inc()
}

// ObserveExport records how long an export in the given format took.
func (c *DeploymentCollector) ObserveExport(format string, d time.Duration) {
	if c == nil {
		return
	}
	c.ExportDuration.WithLabelValues(format).Observe(d.Seconds())
}

// SetTopologyCounts drives the topology gauges.
func (c *DeploymentCollector) SetTopologyCounts(switches, hosts, links int) {
	if c == nil {
		return
	}
	c.Switches.Set(float64(switches))
	c.Hosts.Set(float64(hosts))
	c.Links.Set(float64(links))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *DeploymentCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
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

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
