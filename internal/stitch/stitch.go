// Package stitch joins a CO fabric to its EE domain once both are injected
// into the runtime.
package stitch

import (
	"context"
	"fmt"
	"net/netip"

	"ecordtopo/internal/addressing"
	"ecordtopo/internal/domain"
	"ecordtopo/internal/emulation"
	"ecordtopo/internal/logging"
	"ecordtopo/internal/topology"
)

// Options carries the per-domain stitch inputs.
type Options struct {
	VLANs       []int
	OuterIfs    []string // attached to leaf 1
	InnerIfs    []string // attached to leaf 2
	VLANEnabled bool
	// Gateways overrides the derived gateway of a leaf, keyed by leaf name.
	Gateways map[string]netip.Addr

	// Mover performs the namespace move for switches without direct attach.
	Mover emulation.NamespaceMover
	// Tagger is the VLAN capability of the UNI host. When nil the runtime is
	// used if it implements emulation.VLANTagger.
	Tagger emulation.VLANTagger
}

// Stitch wires the EE edge switch to the fabric's first leaf, pins the UNI
// host MAC, tags VLANs, attaches external interfaces and records the leaf
// gateways. It must run exactly once per domain, after injection and before
// start.
func Stitch(ctx context.Context, rt emulation.Runtime, fabric *topology.Fabric, edge *topology.EdgeDomain, domainID int, opts Options) error {
	log := logging.FromContext(ctx).With(logging.Domain(domainID))

	leaf1, err := fabric.Leaf(1)
	if err != nil {
		return err
	}

	if err := link(rt, edge.Switch(), leaf1, domainID); err != nil {
		return err
	}

	uni := edge.FirstHost()
	if err := pinHostMAC(rt, uni.Name, domainID); err != nil {
		return err
	}

	if opts.VLANEnabled && len(opts.VLANs) > 0 {
		if err := tagVLANs(ctx, rt, opts, uni, domainID); err != nil {
			return err
		}
		log.Info(ctx, "vlans tagged", logging.String("host", uni.Name), logging.Any("vlans", opts.VLANs))
	}

	if err := attachAll(ctx, rt, opts.Mover, leaf1, opts.OuterIfs); err != nil {
		return err
	}
	if len(opts.InnerIfs) > 0 {
		leaf2, err := fabric.Leaf(2)
		if err != nil {
			return fmt.Errorf("%w: inner interfaces need a second leaf: %v", domain.ErrRuntimeAttach, err)
		}
		if err := attachAll(ctx, rt, opts.Mover, leaf2, opts.InnerIfs); err != nil {
			return err
		}
	}

	if err := recordGateways(fabric, domainID, opts.Gateways); err != nil {
		return err
	}

	log.Info(ctx, "domain stitched",
		logging.String("edge", edge.Switch()),
		logging.String("leaf", leaf1),
		logging.Int("attached", len(opts.OuterIfs)+len(opts.InnerIfs)),
	)
	return nil
}

// link creates the EE-CO link on ports 10/10 with derived MACs.
func link(rt emulation.Runtime, edgeSwitch, leaf string, domainID int) error {
	edgeMAC, err := addressing.DeriveMAC(domainID, "aa", "aa")
	if err != nil {
		return err
	}
	leafMAC, err := addressing.DeriveMAC(domainID, "bb", "bb")
	if err != nil {
		return err
	}
	_, err = rt.AddLink(edgeSwitch, leaf, emulation.LinkOptions{
		Port1: domain.StitchPortEdge,
		Port2: domain.StitchPortLeaf,
		Addr1: edgeMAC,
		Addr2: leafMAC,
	})
	if err != nil {
		return fmt.Errorf("stitch link %s-%s: %w", edgeSwitch, leaf, err)
	}
	return nil
}

func pinHostMAC(rt emulation.Runtime, host string, domainID int) error {
	mac, err := addressing.DeriveMAC(domainID, "11", "11")
	if err != nil {
		return err
	}
	intf, err := rt.DefaultIntf(host)
	if err != nil {
		return fmt.Errorf("uni host %s: %w", host, err)
	}
	return rt.SetIntfMAC(host, intf.Name, mac)
}

func tagVLANs(ctx context.Context, rt emulation.Runtime, opts Options, uni topology.Host, domainID int) error {
	if !uni.VLAN {
		return fmt.Errorf("host %s is not vlan-capable", uni.Name)
	}
	tagger := opts.Tagger
	if tagger == nil {
		t, ok := rt.(emulation.VLANTagger)
		if !ok {
			return fmt.Errorf("host %s has no vlan capability", uni.Name)
		}
		tagger = t
	}
	intf, err := rt.DefaultIntf(uni.Name)
	if err != nil {
		return fmt.Errorf("uni host %s: %w", uni.Name, err)
	}
	for _, v := range opts.VLANs {
		addr, err := addressing.VLANAddress(v, domainID)
		if err != nil {
			return err
		}
		if err := tagger.AddVLAN(ctx, uni.Name, intf.Name, v, addr); err != nil {
			return fmt.Errorf("vlan %d on %s: %w", v, uni.Name, err)
		}
	}
	return nil
}

func attachAll(ctx context.Context, rt emulation.Runtime, mover emulation.NamespaceMover, sw string, devs []string) error {
	if len(devs) == 0 {
		return nil
	}
	node, err := rt.Get(sw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRuntimeAttach, err)
	}
	attacher := emulation.AttacherFor(node, mover)
	for _, dev := range devs {
		if _, err := attacher.Attach(ctx, rt, sw, dev); err != nil {
			return fmt.Errorf("%w: %s to %s: %v", domain.ErrRuntimeAttach, dev, sw, err)
		}
		logging.FromContext(ctx).Info(ctx, "interface attached",
			logging.String("device", dev), logging.String("switch", sw))
	}
	return nil
}

// recordGateways fills the leaf gateway map: an explicit override wins,
// otherwise 192.168.<domain>.<position>.
func recordGateways(fabric *topology.Fabric, domainID int, overrides map[string]netip.Addr) error {
	for _, leaf := range fabric.Leaves() {
		gw, ok := overrides[leaf]
		if !ok {
			pos, _ := fabric.Position(leaf)
			derived, err := addressing.DeriveGatewayIP(domainID, pos)
			if err != nil {
				return err
			}
			gw = derived
		}
		if err := fabric.SetGateway(leaf, gw); err != nil {
			return err
		}
	}
	return nil
}
