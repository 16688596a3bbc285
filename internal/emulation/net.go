package emulation

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"sync"
)

// Net is an in-memory Runtime. It models nodes, ports, links and addresses
// without creating kernel objects, which makes every topology operation
// reproducible.
type Net struct {
	mu sync.RWMutex

	order []string
	nodes map[string]*node
	links []Link

	nextPID   int
	macSerial int
	hostSeq   int
}

type node struct {
	Node
	intfs map[string]*Intf
	ports map[int]string
}

// NewNet creates an empty in-memory runtime.
func NewNet() *Net {
	return &Net{
		nodes:   make(map[string]*node),
		nextPID: 1000,
	}
}

// RealNamespaces reports false: Net PIDs are counters, not processes.
func (n *Net) RealNamespaces() bool { return false }

func (n *Net) add(name string, kind Kind) (*node, error) {
	if name == "" {
		return nil, fmt.Errorf("empty node name")
	}
	if _, exists := n.nodes[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrNodeExists, name)
	}
	nd := &node{
		Node:  Node{Name: name, Kind: kind},
		intfs: make(map[string]*Intf),
		ports: make(map[int]string),
	}
	if kind != KindController {
		n.nextPID++
		nd.PID = n.nextPID
	}
	n.nodes[name] = nd
	n.order = append(n.order, name)
	return nd, nil
}

// AddSwitch creates a switch.
func (n *Net) AddSwitch(name string, opts SwitchOptions) (Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if opts.Attach == "" {
		opts.Attach = AttachNamespaceMove
	}
	nd, err := n.add(name, KindSwitch)
	if err != nil {
		return Node{}, err
	}
	nd.Options = opts
	return nd.snapshot(), nil
}

// AddHost creates a host.
func (n *Net) AddHost(name string) (Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd, err := n.add(name, KindHost)
	if err != nil {
		return Node{}, err
	}
	return nd.snapshot(), nil
}

// AddController registers a remote controller endpoint.
func (n *Net) AddController(name, ip string) (Node, error) {
	if _, err := netip.ParseAddr(ip); err != nil {
		return Node{}, fmt.Errorf("controller %s: invalid ip %q: %w", name, ip, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	nd, err := n.add(name, KindController)
	if err != nil {
		return Node{}, err
	}
	nd.IP = ip
	return nd.snapshot(), nil
}

// BindController points a switch at a controller. Binding twice is a no-op.
func (n *Net) BindController(switchName, controllerName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	sw, err := n.lookup(switchName, KindSwitch)
	if err != nil {
		return err
	}
	if _, err := n.lookup(controllerName, KindController); err != nil {
		return err
	}
	for _, c := range sw.Controllers {
		if c == controllerName {
			return nil
		}
	}
	sw.Controllers = append(sw.Controllers, controllerName)
	return nil
}

// AddLink connects two switches or hosts.
func (n *Net) AddLink(a, b string, opts LinkOptions) (Link, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	na, err := n.lookup(a, "")
	if err != nil {
		return Link{}, err
	}
	nb, err := n.lookup(b, "")
	if err != nil {
		return Link{}, err
	}
	if na.Kind == KindController || nb.Kind == KindController {
		return Link{}, fmt.Errorf("%w: controllers cannot be linked", ErrWrongKind)
	}
	if a == b {
		return Link{}, fmt.Errorf("cannot link %q to itself", a)
	}

	p1, err := na.pickPort(opts.Port1)
	if err != nil {
		return Link{}, err
	}
	p2, err := nb.pickPort(opts.Port2)
	if err != nil {
		return Link{}, err
	}

	i1 := n.newIntf(na, p1, opts.Addr1)
	i2 := n.newIntf(nb, p2, opts.Addr2)
	i1.PeerNode, i1.PeerIntf = nb.Name, i2.Name
	i2.PeerNode, i2.PeerIntf = na.Name, i1.Name

	link := Link{Node1: a, Intf1: i1.Name, Port1: p1, Node2: b, Intf2: i2.Name, Port2: p2}
	n.links = append(n.links, link)
	return link, nil
}

// Get returns a node snapshot by name.
func (n *Net) Get(name string) (Node, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	nd, err := n.lookup(name, "")
	if err != nil {
		return Node{}, err
	}
	return nd.snapshot(), nil
}

// Nodes returns all nodes in creation order.
func (n *Net) Nodes() []Node {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Node, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.nodes[name].snapshot())
	}
	return out
}

// Links returns all links in creation order.
func (n *Net) Links() []Link {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Link, len(n.links))
	copy(out, n.links)
	return out
}

// Interfaces returns the interfaces of a node ordered by port, VLAN
// sub-interfaces after their parents.
func (n *Net) Interfaces(name string) ([]Intf, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	nd, err := n.lookup(name, "")
	if err != nil {
		return nil, err
	}
	return nd.sortedIntfs(), nil
}

// DefaultIntf returns the lowest-numbered untagged interface of a node.
func (n *Net) DefaultIntf(name string) (Intf, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	nd, err := n.lookup(name, "")
	if err != nil {
		return Intf{}, err
	}
	for _, i := range nd.sortedIntfs() {
		if i.VLAN == 0 {
			return i, nil
		}
	}
	return Intf{}, fmt.Errorf("%w: %s has no interfaces", ErrIntfNotFound, name)
}

// AttachInterface attaches an external device to a switch tagged AttachDirect.
func (n *Net) AttachInterface(switchName, dev string) (Intf, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	sw, err := n.lookup(switchName, KindSwitch)
	if err != nil {
		return Intf{}, err
	}
	if sw.Options.Attach != AttachDirect {
		return Intf{}, fmt.Errorf("%w: %s", ErrAttachUnsupported, switchName)
	}
	return n.addExternal(sw, dev)
}

// AddInterface registers a device that was moved into the switch namespace.
func (n *Net) AddInterface(switchName, dev string) (Intf, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	sw, err := n.lookup(switchName, KindSwitch)
	if err != nil {
		return Intf{}, err
	}
	return n.addExternal(sw, dev)
}

// SetIntfMAC overrides the MAC of an interface.
func (n *Net) SetIntfMAC(nodeName, intf, mac string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	i, err := n.intf(nodeName, intf)
	if err != nil {
		return err
	}
	i.MAC = mac
	return nil
}

// SetIntfIP assigns a CIDR to an interface; an empty string clears it.
func (n *Net) SetIntfIP(nodeName, intf, cidr string) error {
	if cidr != "" {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return fmt.Errorf("interface %s: invalid address %q: %w", intf, cidr, err)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	i, err := n.intf(nodeName, intf)
	if err != nil {
		return err
	}
	i.IP = cidr
	return nil
}

// AddVLAN creates a tagged sub-interface on a host. Repeating a VLAN is a
// no-op, matching a host that already carries the tag.
func (n *Net) AddVLAN(ctx context.Context, host, parent string, vlan int, addr netip.Prefix) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	h, err := n.lookup(host, KindHost)
	if err != nil {
		return err
	}
	p, ok := h.intfs[parent]
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrIntfNotFound, parent, host)
	}
	name := fmt.Sprintf("%s.%d", parent, vlan)
	if _, exists := h.intfs[name]; exists {
		return nil
	}
	h.intfs[name] = &Intf{
		Name: name,
		Node: host,
		Port: p.Port,
		MAC:  p.MAC,
		IP:   addr.String(),
		VLAN: vlan,
	}
	return nil
}

// Start marks the named nodes running, or every node when none are named.
func (n *Net) Start(ctx context.Context, names ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(names) == 0 {
		names = n.order
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		nd, err := n.lookup(name, "")
		if err != nil {
			return err
		}
		nd.Running = true
	}
	return nil
}

// Stop marks every node stopped.
func (n *Net) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, nd := range n.nodes {
		nd.Running = false
	}
	return nil
}

func (n *Net) lookup(name string, kind Kind) (*node, error) {
	nd, ok := n.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	if kind != "" && nd.Kind != kind {
		return nil, fmt.Errorf("%w: %q is a %s, not a %s", ErrWrongKind, name, nd.Kind, kind)
	}
	return nd, nil
}

func (n *Net) intf(nodeName, intf string) (*Intf, error) {
	nd, err := n.lookup(nodeName, "")
	if err != nil {
		return nil, err
	}
	i, ok := nd.intfs[intf]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrIntfNotFound, intf, nodeName)
	}
	return i, nil
}

func (n *Net) newIntf(nd *node, port int, mac string) *Intf {
	if mac == "" {
		n.macSerial++
		mac = fmt.Sprintf("0a:00:00:%02x:%02x:%02x",
			(n.macSerial>>16)&0xff, (n.macSerial>>8)&0xff, n.macSerial&0xff)
	}
	i := &Intf{
		Name: fmt.Sprintf("%s-eth%d", nd.Name, port),
		Node: nd.Name,
		Port: port,
		MAC:  mac,
	}
	if nd.Kind == KindHost && !nd.hasAddress() {
		n.hostSeq++
		i.IP = fmt.Sprintf("10.0.%d.%d/8", (n.hostSeq>>8)&0xff, n.hostSeq&0xff)
	}
	nd.intfs[i.Name] = i
	nd.ports[port] = i.Name
	return i
}

func (n *Net) addExternal(sw *node, dev string) (Intf, error) {
	if dev == "" {
		return Intf{}, fmt.Errorf("empty device name")
	}
	if _, exists := sw.intfs[dev]; exists {
		return Intf{}, fmt.Errorf("%w: %s already on %s", ErrPortInUse, dev, sw.Name)
	}
	port, _ := sw.pickPort(0)
	n.macSerial++
	i := &Intf{
		Name:     dev,
		Node:     sw.Name,
		Port:     port,
		MAC:      fmt.Sprintf("0a:00:00:%02x:%02x:%02x", (n.macSerial>>16)&0xff, (n.macSerial>>8)&0xff, n.macSerial&0xff),
		External: true,
	}
	sw.intfs[dev] = i
	sw.ports[port] = dev
	return *i, nil
}

func (nd *node) pickPort(want int) (int, error) {
	if want > 0 {
		if used, ok := nd.ports[want]; ok {
			return 0, fmt.Errorf("%w: %s port %d (%s)", ErrPortInUse, nd.Name, want, used)
		}
		return want, nil
	}
	// switches number from 1, hosts from 0
	next := 1
	if nd.Kind == KindHost {
		next = 0
	}
	for p := range nd.ports {
		if p >= next {
			next = p + 1
		}
	}
	return next, nil
}

func (nd *node) hasAddress() bool {
	for _, i := range nd.intfs {
		if i.IP != "" {
			return true
		}
	}
	return false
}

func (nd *node) sortedIntfs() []Intf {
	out := make([]Intf, 0, len(nd.intfs))
	for _, i := range nd.intfs {
		out = append(out, *i)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Port != out[b].Port {
			return out[a].Port < out[b].Port
		}
		if out[a].VLAN != out[b].VLAN {
			return out[a].VLAN < out[b].VLAN
		}
		return out[a].Name < out[b].Name
	})
	return out
}

func (nd *node) snapshot() Node {
	s := nd.Node
	s.Controllers = append([]string(nil), nd.Controllers...)
	return s
}
