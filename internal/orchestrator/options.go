package orchestrator

import (
	"ecordtopo/internal/emulation"
	"ecordtopo/internal/logging"
	"ecordtopo/internal/observability"
	"ecordtopo/internal/repository"
)

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMover sets the namespace mover used by the attach fallback.
func WithMover(m emulation.NamespaceMover) Option {
	return func(o *Orchestrator) { o.mover = m }
}

// WithTagger sets the VLAN capability of UNI hosts. The runtime is used when
// unset.
func WithTagger(t emulation.VLANTagger) Option {
	return func(o *Orchestrator) { o.tagger = t }
}

// WithLedger records domains, transitions and documents.
func WithLedger(l repository.Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithMetrics drives the deployment collector.
func WithMetrics(c *observability.DeploymentCollector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithProbe runs a controller preflight before the batch start.
func WithProbe(p Prober) Option {
	return func(o *Orchestrator) { o.probe = p }
}

// WithEventBus publishes lifecycle events.
func WithEventBus(b *EventBus) Option {
	return func(o *Orchestrator) { o.events = b }
}
