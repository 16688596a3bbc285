package srconfig

import (
	"fmt"
	"strings"

	"ecordtopo/internal/addressing"
	"ecordtopo/internal/domain"
	"ecordtopo/internal/emulation"
	"ecordtopo/internal/topology"
)

// HostRegistry lists the hosts a document should describe, in order.
type HostRegistry interface {
	HostNames() []string
}

// Export walks the fabric's switches in creation order and the registry's
// hosts, and returns the segment-routing document. It reads the runtime and
// never mutates it. A leaf without a recorded gateway fails the whole export.
func Export(rt emulation.Runtime, fabric *topology.Fabric, hosts HostRegistry) (*Document, error) {
	d := fabric.DomainID
	doc := &Document{DomainID: d}

	for i, sw := range fabric.Switches() {
		pos := i + 1
		id, err := addressing.DeriveSwitchID(d, pos)
		if err != nil {
			return nil, err
		}
		mac, err := addressing.DeriveRouterMAC(d, pos)
		if err != nil {
			return nil, err
		}
		entry := SwitchEntry{Position: pos, ID: id, Name: sw, MAC: mac}

		if fabric.IsLeaf(sw) {
			gw, ok := fabric.Gateway(sw)
			if !ok {
				return nil, fmt.Errorf("%w: leaf %s", domain.ErrMissingGateway, sw)
			}
			entry.Role = RoleLeaf
			entry.Gateway = gw.String()
			entry.Ports, err = portBindings(rt, sw, addressing.SubnetOf(gw))
			if err != nil {
				return nil, err
			}
		} else {
			gw, err := addressing.DeriveGatewayIP(d, pos)
			if err != nil {
				return nil, err
			}
			entry.Role = RoleSpine
			entry.Gateway = gw.String()
		}
		doc.Switches = append(doc.Switches, entry)
	}

	if hosts != nil {
		for _, name := range hosts.HostNames() {
			h, err := hostEntry(rt, name)
			if err != nil {
				return nil, err
			}
			doc.Hosts = append(doc.Hosts, h)
		}
	}
	return doc, nil
}

// portBindings returns one entry per host- or tether-facing port of a leaf,
// ordered by port number.
func portBindings(rt emulation.Runtime, leaf, subnet string) ([]PortEntry, error) {
	intfs, err := rt.Interfaces(leaf)
	if err != nil {
		return nil, err
	}
	var ports []PortEntry
	for _, i := range intfs {
		if i.IsLoopback() || i.VLAN != 0 {
			continue
		}
		if !facesHostOrTether(i) {
			continue
		}
		ports = append(ports, PortEntry{Port: i.Port, Name: i.Name, Subnets: []string{subnet}})
	}
	return ports, nil
}

func facesHostOrTether(i emulation.Intf) bool {
	if i.External {
		return true
	}
	if strings.HasPrefix(i.Node, domain.HostPrefix) || strings.HasPrefix(i.PeerNode, domain.HostPrefix) {
		return true
	}
	return strings.Contains(i.Node, domain.TetherMarker) || strings.Contains(i.PeerNode, domain.TetherMarker)
}

func hostEntry(rt emulation.Runtime, name string) (HostEntry, error) {
	intfs, err := rt.Interfaces(name)
	if err != nil {
		return HostEntry{}, err
	}
	def, err := rt.DefaultIntf(name)
	if err != nil {
		return HostEntry{}, err
	}
	h := HostEntry{Name: name, MAC: def.MAC, IPs: []string{}}
	for _, i := range intfs {
		if i.IP != "" {
			h.IPs = append(h.IPs, i.IP)
		}
	}
	if def.Linked() {
		peer, err := peerPort(rt, def)
		if err != nil {
			return HostEntry{}, err
		}
		h.Location = fmt.Sprintf("%s/%d", def.PeerNode, peer)
	}
	return h, nil
}

func peerPort(rt emulation.Runtime, i emulation.Intf) (int, error) {
	intfs, err := rt.Interfaces(i.PeerNode)
	if err != nil {
		return 0, err
	}
	for _, p := range intfs {
		if p.Name == i.PeerIntf {
			return p.Port, nil
		}
	}
	return 0, fmt.Errorf("%w: %s on %s", emulation.ErrIntfNotFound, i.PeerIntf, i.PeerNode)
}
