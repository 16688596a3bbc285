// Package topology builds the CO spine-leaf fabric and the EE edge domain as
// blueprints, then injects them into an emulation runtime.
//
// Builders validate every size and identifier range before returning a
// blueprint, so a failed build never leaves runtime objects behind.
package topology

import (
	"fmt"
	"net/netip"

	"ecordtopo/internal/addressing"
	"ecordtopo/internal/domain"
	"ecordtopo/internal/emulation"
)

// Default fabric dimensions.
const (
	DefaultSpines = 2
	DefaultLeaves = 2
)

// ControllerBinding maps (domain, index) to a controller endpoint.
type ControllerBinding struct {
	DomainID int
	Index    int
	Name     string
	IP       string
}

// LinkSpec is a link to create, optionally with pinned ports and addresses.
type LinkSpec struct {
	A, B string
	Opts emulation.LinkOptions
}

// Fabric is one CO: an ordered set of leaves and spines in a full bipartite
// mesh, with the last leaf designated as the tether.
type Fabric struct {
	DomainID int

	spines      []string
	leaves      []string
	tether      string
	links       []LinkSpec
	controllers []ControllerBinding
	gateways    map[string]netip.Addr
	swOpts      emulation.SwitchOptions
}

// BuildFabric validates the dimensions and returns the blueprint of a
// spines x leaves fabric for domainID.
func BuildFabric(domainID, spines, leaves int, opts ...Option) (*Fabric, error) {
	if spines <= 0 || leaves <= 0 {
		return nil, fmt.Errorf("%w: fabric %dx%d", domain.ErrInvalidTopologySize, spines, leaves)
	}
	// every switch needs a switch id, so the highest creation position must
	// still derive one
	if _, err := addressing.DeriveSwitchID(domainID, spines+leaves); err != nil {
		return nil, fmt.Errorf("fabric %d: %w", domainID, err)
	}

	o := collect(opts)
	f := &Fabric{
		DomainID: domainID,
		gateways: make(map[string]netip.Addr),
		swOpts:   o.switchOpts,
	}

	// leaves first: the customer-facing leaf takes creation position 1
	for i := 1; i <= leaves; i++ {
		f.leaves = append(f.leaves, domain.LeafName(domainID, i))
	}
	for i := 1; i <= spines; i++ {
		f.spines = append(f.spines, domain.SpineName(domainID, i))
	}
	f.tether = f.leaves[len(f.leaves)-1]

	for _, s := range f.spines {
		for _, l := range f.leaves {
			f.links = append(f.links, LinkSpec{A: s, B: l})
		}
	}
	return f, nil
}

// Spines returns the spine names in creation order.
func (f *Fabric) Spines() []string { return append([]string(nil), f.spines...) }

// Leaves returns the leaf names in creation order.
func (f *Fabric) Leaves() []string { return append([]string(nil), f.leaves...) }

// Tether returns the leaf used for external attachments. It is the last
// leaf, which equals leaf 2 (the lf2Ifs target) only in the default
// two-leaf fabric.
func (f *Fabric) Tether() string { return f.tether }

// Leaf returns the i-th (1-based) leaf.
func (f *Fabric) Leaf(i int) (string, error) {
	if i < 1 || i > len(f.leaves) {
		return "", fmt.Errorf("%w: fabric %d has no leaf %d", domain.ErrOutOfRange, f.DomainID, i)
	}
	return f.leaves[i-1], nil
}

// Switches returns every switch in creation order.
func (f *Fabric) Switches() []string {
	out := make([]string, 0, len(f.leaves)+len(f.spines))
	out = append(out, f.leaves...)
	return append(out, f.spines...)
}

// Position returns the 1-based creation position of a switch.
func (f *Fabric) Position(name string) (int, bool) {
	for i, sw := range f.Switches() {
		if sw == name {
			return i + 1, true
		}
	}
	return 0, false
}

// IsLeaf reports whether name is one of the fabric's leaves.
func (f *Fabric) IsLeaf(name string) bool {
	for _, l := range f.leaves {
		if l == name {
			return true
		}
	}
	return false
}

// Links returns the mesh links in creation order.
func (f *Fabric) Links() []LinkSpec { return append([]LinkSpec(nil), f.links...) }

// AddController registers a CO controller. It can happen before or after the
// build, but must precede injection.
func (f *Fabric) AddController(ip string) (ControllerBinding, error) {
	if _, err := netip.ParseAddr(ip); err != nil {
		return ControllerBinding{}, fmt.Errorf("%w: controller ip %q", domain.ErrConfigParse, ip)
	}
	idx := len(f.controllers)
	b := ControllerBinding{
		DomainID: f.DomainID,
		Index:    idx,
		Name:     domain.ControllerName(f.DomainID, idx),
		IP:       ip,
	}
	f.controllers = append(f.controllers, b)
	return b, nil
}

// Controllers returns the registered CO controllers.
func (f *Fabric) Controllers() []ControllerBinding {
	return append([]ControllerBinding(nil), f.controllers...)
}

// SetGateway records the gateway address a leaf serves.
func (f *Fabric) SetGateway(leaf string, gw netip.Addr) error {
	if !f.IsLeaf(leaf) {
		return fmt.Errorf("%w: %s is not a leaf of fabric %d", domain.ErrOutOfRange, leaf, f.DomainID)
	}
	if !gw.Is4() {
		return fmt.Errorf("%w: gateway %s is not IPv4", domain.ErrOutOfRange, gw)
	}
	f.gateways[leaf] = gw
	return nil
}

// Gateway returns the recorded gateway of a leaf.
func (f *Fabric) Gateway(leaf string) (netip.Addr, bool) {
	gw, ok := f.gateways[leaf]
	return gw, ok
}

// InjectInto creates the fabric's switches, controllers and links in rt.
func (f *Fabric) InjectInto(rt emulation.Runtime) error {
	for _, sw := range f.Switches() {
		if _, err := rt.AddSwitch(sw, f.swOpts); err != nil {
			return fmt.Errorf("add switch: %w", err)
		}
	}
	for _, c := range f.controllers {
		if err := addController(rt, c); err != nil {
			return err
		}
		for _, sw := range f.Switches() {
			if err := rt.BindController(sw, c.Name); err != nil {
				return fmt.Errorf("bind %s to %s: %w", sw, c.Name, err)
			}
		}
	}
	for _, l := range f.links {
		if _, err := rt.AddLink(l.A, l.B, l.Opts); err != nil {
			return fmt.Errorf("link %s-%s: %w", l.A, l.B, err)
		}
	}
	return nil
}

func addController(rt emulation.Runtime, c ControllerBinding) error {
	if _, err := rt.AddController(c.Name, c.IP); err != nil {
		return fmt.Errorf("add controller: %w", err)
	}
	return nil
}
