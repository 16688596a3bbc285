// Package emulation defines the boundary to the network-emulation runtime and
// ships an in-memory implementation of it.
//
// The runtime owns switch, host and controller objects, allocates ports for
// links that do not pin them, and starts or stops nodes. Callers never hold
// pointers into runtime state: every accessor returns value snapshots.
//
// # Attach capabilities
//
// External interfaces reach a running switch in one of two ways, selected by
// the AttachMode tag on the switch: direct attach through the runtime, or a
// namespace move (NamespaceMover) followed by AddInterface.
//
// # VLAN capability
//
// Hosts optionally support VLAN tagging through a VLANTagger. Net implements
// it in memory; CommandVLANTagger drives a real host through a Commander.
package emulation

import (
	"context"
	"errors"
)

var (
	ErrNodeExists        = errors.New("node already exists")
	ErrNodeNotFound      = errors.New("node not found")
	ErrIntfNotFound      = errors.New("interface not found")
	ErrPortInUse         = errors.New("port already in use")
	ErrWrongKind         = errors.New("wrong node kind")
	ErrAttachUnsupported = errors.New("switch does not support direct attach")
	// ErrSyntheticNamespaces reports a runtime whose node PIDs do not name
	// kernel network namespaces.
	ErrSyntheticNamespaces = errors.New("runtime has no real network namespaces")
)

// Kind is the role of a runtime node.
type Kind string

const (
	KindSwitch     Kind = "switch"
	KindHost       Kind = "host"
	KindController Kind = "controller"
)

// AttachMode tags a switch with the way external interfaces reach it.
type AttachMode string

const (
	// AttachDirect switches accept interfaces through Runtime.AttachInterface.
	AttachDirect AttachMode = "direct"
	// AttachNamespaceMove switches need the device moved into their network
	// namespace first, then registered with Runtime.AddInterface.
	AttachNamespaceMove AttachMode = "netns"
)

// ParseAttachMode converts a string to AttachMode, defaulting to AttachNamespaceMove
func ParseAttachMode(s string) AttachMode {
	switch s {
	case string(AttachDirect):
		return AttachDirect
	default:
		return AttachNamespaceMove
	}
}

// SwitchOptions configures a switch at creation.
type SwitchOptions struct {
	DatapathOpts string
	Attach       AttachMode
}

// LinkOptions pins ports and MAC addresses of a new link. Zero values let the
// runtime choose.
type LinkOptions struct {
	Port1 int
	Port2 int
	Addr1 string
	Addr2 string
}

// Node is a snapshot of a runtime node.
type Node struct {
	Name        string
	Kind        Kind
	PID         int
	Options     SwitchOptions
	IP          string // controllers only
	Controllers []string
	Running     bool
}

// Intf is a snapshot of a node interface.
type Intf struct {
	Name     string
	Node     string
	Port     int
	MAC      string
	IP       string // CIDR, empty when unaddressed
	PeerNode string // empty for unlinked interfaces
	PeerIntf string
	External bool // attached from outside the emulation
	VLAN     int  // non-zero for tagged sub-interfaces
}

// IsLoopback reports whether the interface is a loopback device.
func (i Intf) IsLoopback() bool { return i.Name == "lo" }

// Linked reports whether the interface terminates a runtime link.
func (i Intf) Linked() bool { return i.PeerNode != "" }

// Link is a snapshot of a point-to-point link.
type Link struct {
	Node1, Intf1 string
	Port1        int
	Node2, Intf2 string
	Port2        int
}

// Runtime is the boundary to the network-emulation collaborator.
type Runtime interface {
	AddSwitch(name string, opts SwitchOptions) (Node, error)
	AddHost(name string) (Node, error)
	AddController(name, ip string) (Node, error)
	BindController(switchName, controllerName string) error
	AddLink(a, b string, opts LinkOptions) (Link, error)

	Get(name string) (Node, error)
	Nodes() []Node
	Links() []Link
	Interfaces(node string) ([]Intf, error)
	DefaultIntf(node string) (Intf, error)

	// AttachInterface hands an existing device to a running switch. Only
	// switches tagged AttachDirect support it.
	AttachInterface(switchName, dev string) (Intf, error)
	// AddInterface registers a device already moved into the switch namespace.
	AddInterface(switchName, dev string) (Intf, error)

	SetIntfMAC(node, intf, mac string) error
	SetIntfIP(node, intf, cidr string) error

	Start(ctx context.Context, names ...string) error
	Stop(ctx context.Context) error
}

// NamespaceBacked is implemented by runtimes that can say whether node PIDs
// are real processes owning kernel network namespaces.
type NamespaceBacked interface {
	RealNamespaces() bool
}

// HasRealNamespaces reports whether rt backs its nodes with kernel network
// namespaces. Runtimes that do not implement NamespaceBacked are assumed not
// to.
func HasRealNamespaces(rt Runtime) bool {
	nb, ok := rt.(NamespaceBacked)
	return ok && nb.RealNamespaces()
}
