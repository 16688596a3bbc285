// Package srconfig derives the segment-routing configuration document of a
// CO from its finished topology.
package srconfig

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// Switch roles.
const (
	RoleLeaf  = "leaf"
	RoleSpine = "spine"
)

// Document is the segment-routing configuration of one CO. It is built once
// from a finished topology and never mutated.
type Document struct {
	DomainID int           `json:"domainId" yaml:"domain_id"`
	Switches []SwitchEntry `json:"switches" yaml:"switches"`
	Hosts    []HostEntry   `json:"hosts" yaml:"hosts"`
}

// SwitchEntry describes one switch, numbered by creation position.
type SwitchEntry struct {
	Position int         `json:"position" yaml:"position"`
	ID       string      `json:"switchId" yaml:"switch_id"`
	Name     string      `json:"name" yaml:"name"`
	Role     string      `json:"role" yaml:"role"`
	Gateway  string      `json:"gateway" yaml:"gateway"`
	MAC      string      `json:"mac" yaml:"mac"`
	Ports    []PortEntry `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// PortEntry binds subnets to a switch port.
type PortEntry struct {
	Port    int      `json:"port" yaml:"port"`
	Name    string   `json:"name" yaml:"name"`
	Subnets []string `json:"subnets" yaml:"subnets"`
}

// HostEntry describes one host reachable through the CO.
type HostEntry struct {
	Name     string   `json:"name" yaml:"name"`
	MAC      string   `json:"mac" yaml:"mac"`
	IPs      []string `json:"ips" yaml:"ips"`
	Location string   `json:"location" yaml:"location"`
}

// Switch returns the entry with the given switch id.
func (d *Document) Switch(id string) (SwitchEntry, bool) {
	for _, s := range d.Switches {
		if s.ID == id {
			return s, true
		}
	}
	return SwitchEntry{}, false
}

// Validate checks the document for internal consistency.
func (d *Document) Validate() error {
	var errs []error
	ids := make(map[string]bool)
	for _, s := range d.Switches {
		if ids[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate switch id %s", s.ID))
		}
		ids[s.ID] = true
		if _, err := netip.ParseAddr(s.Gateway); err != nil {
			errs = append(errs, fmt.Errorf("switch %s: gateway %q: %w", s.ID, s.Gateway, err))
		}
		if _, err := net.ParseMAC(s.MAC); err != nil {
			errs = append(errs, fmt.Errorf("switch %s: %w", s.ID, err))
		}
		ports := make(map[int]bool)
		for _, p := range s.Ports {
			if ports[p.Port] {
				errs = append(errs, fmt.Errorf("switch %s: duplicate port %d", s.ID, p.Port))
			}
			ports[p.Port] = true
			for _, sn := range p.Subnets {
				if _, err := netip.ParsePrefix(sn); err != nil {
					errs = append(errs, fmt.Errorf("switch %s port %d: %w", s.ID, p.Port, err))
				}
			}
		}
	}
	for _, h := range d.Hosts {
		// hosts the runtime could not report a MAC for are kept without one
		if h.MAC != "" {
			if _, err := net.ParseMAC(h.MAC); err != nil {
				errs = append(errs, fmt.Errorf("host %s: %w", h.Name, err))
			}
		}
		for _, ip := range h.IPs {
			if _, err := netip.ParsePrefix(ip); err != nil {
				errs = append(errs, fmt.Errorf("host %s: %w", h.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}
