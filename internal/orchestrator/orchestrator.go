// Package orchestrator drives every configured CO/EE domain through its
// lifecycle: build, stitch, a single batch start, and stop.
//
// Domains are processed sequentially in configuration order. Any build or
// stitch failure aborts the deployment before anything starts, and no step
// is retried.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ecordtopo/internal/config"
	"ecordtopo/internal/domain"
	"ecordtopo/internal/emulation"
	"ecordtopo/internal/logging"
	"ecordtopo/internal/observability"
	"ecordtopo/internal/probe"
	"ecordtopo/internal/repository"
	"ecordtopo/internal/stitch"
	"ecordtopo/internal/topology"
)

// ErrUnknownDomain is returned for a domain id absent from the deployment.
var ErrUnknownDomain = errors.New("unknown domain")

// Prober checks controller reachability. Findings are advisory.
type Prober interface {
	Preflight(ctx context.Context, targets []string) []probe.Result
}

// deployment is the per-domain lifecycle record.
type deployment struct {
	cfg    config.DomainConfig
	state  domain.State
	fabric *topology.Fabric
	edge   *topology.EdgeDomain
}

// Orchestrator owns the domain state machines and the shared runtime.
// Lifecycle steps run from one goroutine; State, Domains and Export may be
// called concurrently with them.
type Orchestrator struct {
	rt       emulation.Runtime
	settings *config.Settings
	order    []int
	domains  map[int]*deployment
	mu       sync.RWMutex // guards deployment.state

	log     logging.Logger
	mover   emulation.NamespaceMover
	tagger  emulation.VLANTagger
	ledger  repository.Ledger
	metrics *observability.DeploymentCollector
	probe   Prober
	events  *EventBus
}

// New creates an orchestrator for the domains of cfg. Every domain starts
// Unbuilt. A nil settings uses config.DefaultSettings.
func New(rt emulation.Runtime, cfg config.DeploymentConfig, settings *config.Settings, opts ...Option) *Orchestrator {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	o := &Orchestrator{
		rt:       rt,
		settings: settings,
		domains:  make(map[int]*deployment),
		log:      logging.Noop(),
		mover:    emulation.NoopMover{},
	}
	for _, opt := range opts {
		opt(o)
	}
	for _, dc := range cfg.Domains() {
		o.order = append(o.order, dc.ID)
		o.domains[dc.ID] = &deployment{cfg: dc, state: domain.StateUnbuilt}
	}
	return o
}

// Domains returns the configured domain ids in order.
func (o *Orchestrator) Domains() []int { return append([]int(nil), o.order...) }

// Runtime returns the shared runtime.
func (o *Orchestrator) Runtime() emulation.Runtime { return o.rt }

// State returns the lifecycle state of a domain.
func (o *Orchestrator) State(id int) (domain.State, error) {
	d, err := o.get(id)
	if err != nil {
		return "", err
	}
	return o.stateOf(d), nil
}

// Fabric returns the CO blueprint of a built domain.
func (o *Orchestrator) Fabric(id int) (*topology.Fabric, error) {
	d, err := o.get(id)
	if err != nil {
		return nil, err
	}
	if o.stateOf(d) == domain.StateUnbuilt {
		return nil, fmt.Errorf("domain %d is %s: %w", id, domain.StateUnbuilt, domain.ErrInvalidTransition)
	}
	return d.fabric, nil
}

// Edge returns the EE blueprint of a built domain.
func (o *Orchestrator) Edge(id int) (*topology.EdgeDomain, error) {
	d, err := o.get(id)
	if err != nil {
		return nil, err
	}
	if o.stateOf(d) == domain.StateUnbuilt {
		return nil, fmt.Errorf("domain %d is %s: %w", id, domain.StateUnbuilt, domain.ErrInvalidTransition)
	}
	return d.edge, nil
}

// Deploy builds and stitches every domain in order, then starts them all in
// one batch. The first failure aborts the deployment before any start.
func (o *Orchestrator) Deploy(ctx context.Context) error {
	for _, id := range o.order {
		if err := o.Build(ctx, id); err != nil {
			return err
		}
	}
	for _, id := range o.order {
		if err := o.Stitch(ctx, id); err != nil {
			return err
		}
	}
	o.preflight(ctx)
	return o.StartAll(ctx)
}

// Build creates the CO and EE blueprints of a domain and registers its CO
// controllers. Nothing touches the runtime yet.
func (o *Orchestrator) Build(ctx context.Context, id int) (err error) {
	d, err := o.get(id)
	if err != nil {
		return err
	}
	if err := o.check(d, domain.StateBuilt); err != nil {
		return err
	}

	ctx, span := observability.StartPhase(ctx, "build", id)
	defer func() {
		observability.EndPhase(span, err)
		o.fail(ctx, id, "build", err)
	}()

	s := o.settings
	opts := []topology.Option{
		topology.WithSwitchOptions(s.SwitchOptions()),
		topology.WithVLANHosts(s.VLAN),
	}

	fabric, err := topology.BuildFabric(id, s.Fabric.Spines, s.Fabric.Leaves, opts...)
	if err != nil {
		return fmt.Errorf("build fabric %d: %w", id, err)
	}
	for _, ip := range d.cfg.Controllers {
		if _, err := fabric.AddController(ip); err != nil {
			return fmt.Errorf("build fabric %d: %w", id, err)
		}
	}
	if err := fabric.Validate(); err != nil {
		return fmt.Errorf("build fabric %d: %w", id, err)
	}

	metro := s.MetroControllersFor(id)
	if len(metro) == 0 {
		o.log.Warn(ctx, "edge domain has no metro controllers", logging.Domain(id))
	}
	edge, err := topology.BuildEdge(id, s.HostCount(id), metro, opts...)
	if err != nil {
		return fmt.Errorf("build edge %d: %w", id, err)
	}

	d.fabric, d.edge = fabric, edge
	o.record(ctx, d)
	o.advance(ctx, d, domain.StateBuilt)
	o.log.Info(ctx, "domain built",
		logging.Domain(id),
		logging.Int("spines", len(fabric.Spines())),
		logging.Int("leaves", len(fabric.Leaves())),
		logging.Int("hosts", len(edge.Hosts())),
	)
	return nil
}

// Stitch injects a built domain into the runtime and joins CO to EE.
func (o *Orchestrator) Stitch(ctx context.Context, id int) (err error) {
	d, err := o.get(id)
	if err != nil {
		return err
	}
	if err := o.check(d, domain.StateStitched); err != nil {
		return err
	}

	ctx, span := observability.StartPhase(ctx, "stitch", id)
	defer func() {
		observability.EndPhase(span, err)
		o.fail(ctx, id, "stitch", err)
	}()

	gateways, err := o.settings.GatewayOverrides(id)
	if err != nil {
		return err
	}
	if err := d.fabric.InjectInto(o.rt); err != nil {
		return fmt.Errorf("inject fabric %d: %w", id, err)
	}
	if err := d.edge.InjectInto(o.rt); err != nil {
		return fmt.Errorf("inject edge %d: %w", id, err)
	}

	err = stitch.Stitch(logging.ContextWithLogger(ctx, o.log), o.rt, d.fabric, d.edge, id, stitch.Options{
		VLANs:       d.cfg.VLANs,
		OuterIfs:    d.cfg.OuterIfs,
		InnerIfs:    d.cfg.InnerIfs,
		VLANEnabled: o.settings.VLAN,
		Gateways:    gateways,
		Mover:       o.mover,
		Tagger:      o.tagger,
	})
	if err != nil {
		return fmt.Errorf("stitch domain %d: %w", id, err)
	}

	o.advance(ctx, d, domain.StateStitched)
	o.updateTopologyGauges()
	return nil
}

// StartAll starts every domain in one batch. All domains must be Stitched;
// otherwise nothing starts. The runtime-assigned address of each UNI host's
// default interface is cleared first.
func (o *Orchestrator) StartAll(ctx context.Context) (err error) {
	for _, id := range o.order {
		if err := o.check(o.domains[id], domain.StateRunning); err != nil {
			return err
		}
	}

	ctx, span := observability.StartPhase(ctx, "start", 0)
	defer func() {
		observability.EndPhase(span, err)
		o.fail(ctx, 0, "start", err)
	}()

	for _, id := range o.order {
		uni := o.domains[id].edge.FirstHost().Name
		intf, err := o.rt.DefaultIntf(uni)
		if err != nil {
			return fmt.Errorf("uni host %s: %w", uni, err)
		}
		if err := o.rt.SetIntfIP(uni, intf.Name, ""); err != nil {
			return fmt.Errorf("clear %s address: %w", uni, err)
		}
	}

	if err := o.rt.Start(ctx); err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	for _, id := range o.order {
		o.advance(ctx, o.domains[id], domain.StateRunning)
	}
	o.log.Info(ctx, "all domains running", logging.Int("domains", len(o.order)))
	return nil
}

// Stop stops the runtime and moves every running domain to Stopped.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if err := o.rt.Stop(ctx); err != nil {
		return fmt.Errorf("stop runtime: %w", err)
	}
	for _, id := range o.order {
		d := o.domains[id]
		if o.stateOf(d).CanTransition(domain.StateStopped) {
			o.advance(ctx, d, domain.StateStopped)
		}
	}
	o.log.Info(ctx, "runtime stopped")
	return nil
}

func (o *Orchestrator) get(id int) (*deployment, error) {
	d, ok := o.domains[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDomain, id)
	}
	return d, nil
}

func (o *Orchestrator) check(d *deployment, to domain.State) error {
	if s := o.stateOf(d); !s.CanTransition(to) {
		return fmt.Errorf("%w: domain %d %s -> %s", domain.ErrInvalidTransition, d.cfg.ID, s, to)
	}
	return nil
}

func (o *Orchestrator) stateOf(d *deployment) domain.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return d.state
}

// advance moves d to state to and fans the transition out to the ledger,
// metrics and event bus. Ledger failures are logged.
func (o *Orchestrator) advance(ctx context.Context, d *deployment, to domain.State) {
	o.mu.Lock()
	from := d.state
	d.state = to
	o.mu.Unlock()

	o.metrics.RecordTransition(d.cfg.ID, to)
	o.events.Publish(Event{Type: EventDomainTransition, DomainID: d.cfg.ID, From: from, To: to})
	if o.ledger != nil {
		t := repository.Transition{DomainID: d.cfg.ID, From: from, To: to, At: time.Now().UTC()}
		if err := o.ledger.RecordTransition(ctx, t); err != nil {
			o.log.Warn(ctx, "ledger transition not recorded", logging.Domain(d.cfg.ID), logging.Err(err))
		}
	}
}

// record writes the domain shape to the ledger before its first transition.
func (o *Orchestrator) record(ctx context.Context, d *deployment) {
	if o.ledger == nil {
		return
	}
	rec := repository.DomainRecord{
		ID:          d.cfg.ID,
		Spines:      len(d.fabric.Spines()),
		Leaves:      len(d.fabric.Leaves()),
		Hosts:       len(d.edge.Hosts()),
		Controllers: d.cfg.Controllers,
		VLANs:       d.cfg.VLANs,
		State:       o.stateOf(d),
	}
	if err := o.ledger.UpsertDomain(ctx, rec); err != nil {
		o.log.Warn(ctx, "ledger domain not recorded", logging.Domain(d.cfg.ID), logging.Err(err))
	}
}

func (o *Orchestrator) fail(ctx context.Context, id int, phase string, err error) {
	if err == nil {
		return
	}
	o.metrics.RecordFailure(phase)
	o.events.Publish(Event{Type: EventDomainFailed, DomainID: id, Phase: phase, Error: err.Error()})
	o.log.Error(ctx, "deployment phase failed",
		logging.Domain(id), logging.String("phase", phase), logging.Err(err))
}

func (o *Orchestrator) preflight(ctx context.Context) {
	if o.probe == nil {
		return
	}
	var targets []string
	seen := make(map[string]bool)
	for _, id := range o.order {
		d := o.domains[id]
		for _, c := range append(d.fabric.Controllers(), d.edge.Controllers()...) {
			if !seen[c.IP] {
				seen[c.IP] = true
				targets = append(targets, c.IP)
			}
		}
	}
	o.probe.Preflight(ctx, targets)
}

func (o *Orchestrator) updateTopologyGauges() {
	if o.metrics == nil {
		return
	}
	var switches, hosts int
	for _, n := range o.rt.Nodes() {
		switch n.Kind {
		case emulation.KindSwitch:
			switches++
		case emulation.KindHost:
			hosts++
		}
	}
	o.metrics.SetTopologyCounts(switches, hosts, len(o.rt.Links()))
}
