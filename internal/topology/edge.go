package topology

import (
	"fmt"
	"net/netip"

	"ecordtopo/internal/domain"
	"ecordtopo/internal/emulation"
)

// Host is a UNI host of an edge domain. VLAN marks hosts that carry the VLAN
// tagging capability.
type Host struct {
	Name string
	Port int
	VLAN bool
}

// EdgeDomain is one EE: a single edge switch, its UNI hosts and the metro
// controllers bound to the switch.
type EdgeDomain struct {
	DomainID int

	sw          string
	hosts       []Host
	controllers []ControllerBinding
	swOpts      emulation.SwitchOptions
}

// BuildEdge validates its inputs and returns the blueprint of the EE for
// domainID with hostCount hosts. An empty controllerIPs is allowed; callers
// should warn about a controller-less domain.
func BuildEdge(domainID, hostCount int, controllerIPs []string, opts ...Option) (*EdgeDomain, error) {
	if hostCount < 1 {
		return nil, fmt.Errorf("%w: %d hosts", domain.ErrInvalidTopologySize, hostCount)
	}
	if domainID < 1 || domainID > 255 {
		return nil, fmt.Errorf("%w: domain id %d not in 1..255", domain.ErrOutOfRange, domainID)
	}
	for _, ip := range controllerIPs {
		if _, err := netip.ParseAddr(ip); err != nil {
			return nil, fmt.Errorf("%w: controller ip %q", domain.ErrConfigParse, ip)
		}
	}

	o := collect(opts)
	e := &EdgeDomain{
		DomainID: domainID,
		sw:       domain.EdgeSwitchName(domainID),
		swOpts:   o.switchOpts,
	}
	for i := 1; i <= hostCount; i++ {
		e.hosts = append(e.hosts, Host{Name: domain.HostName(domainID, i), Port: i, VLAN: o.vlanHosts})
	}
	for i, ip := range controllerIPs {
		e.controllers = append(e.controllers, ControllerBinding{
			DomainID: domainID,
			Index:    i + 1,
			Name:     domain.MetroControllerName(domainID, i+1),
			IP:       ip,
		})
	}
	return e, nil
}

// Switch returns the edge switch name.
func (e *EdgeDomain) Switch() string { return e.sw }

// Hosts returns the UNI hosts in order.
func (e *EdgeDomain) Hosts() []Host { return append([]Host(nil), e.hosts...) }

// HostNames returns the UNI host names in order.
func (e *EdgeDomain) HostNames() []string {
	out := make([]string, len(e.hosts))
	for i, h := range e.hosts {
		out[i] = h.Name
	}
	return out
}

// FirstHost returns the customer-facing host.
func (e *EdgeDomain) FirstHost() Host { return e.hosts[0] }

// Controllers returns the metro controller bindings.
func (e *EdgeDomain) Controllers() []ControllerBinding {
	return append([]ControllerBinding(nil), e.controllers...)
}

// Nodes returns every switch and host name of the domain.
func (e *EdgeDomain) Nodes() []string {
	return append([]string{e.sw}, e.HostNames()...)
}

// InjectInto creates the edge switch, hosts, controllers and host links in rt.
// Host i is linked on port i at both ends.
func (e *EdgeDomain) InjectInto(rt emulation.Runtime) error {
	if _, err := rt.AddSwitch(e.sw, e.swOpts); err != nil {
		return fmt.Errorf("add switch: %w", err)
	}
	for _, h := range e.hosts {
		if _, err := rt.AddHost(h.Name); err != nil {
			return fmt.Errorf("add host: %w", err)
		}
		if _, err := rt.AddLink(h.Name, e.sw, emulation.LinkOptions{Port1: h.Port, Port2: h.Port}); err != nil {
			return fmt.Errorf("link %s-%s: %w", h.Name, e.sw, err)
		}
	}
	for _, c := range e.controllers {
		if err := addController(rt, c); err != nil {
			return err
		}
		if err := rt.BindController(e.sw, c.Name); err != nil {
			return fmt.Errorf("bind %s to %s: %w", e.sw, c.Name, err)
		}
	}
	return nil
}
