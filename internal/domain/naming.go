package domain

import "fmt"

const (
	// HostPrefix starts the name of every emulated end host.
	HostPrefix = "h"
	// TetherMarker appears in the names of tether-facing endpoints.
	TetherMarker = "tether"
)

// Fixed port numbers of the CO/EE stitch link.
const (
	StitchPortEdge = 10
	StitchPortLeaf = 10
)

// SpineName returns the name of the i-th (1-based) spine of domain id.
func SpineName(id, i int) string { return fmt.Sprintf("spine%d%d", id, i) }

// LeafName returns the name of the i-th (1-based) leaf of domain id.
func LeafName(id, i int) string { return fmt.Sprintf("leaf%d0%d", id, i) }

// EdgeSwitchName returns the name of the EE edge switch of domain id.
func EdgeSwitchName(id int) string { return fmt.Sprintf("ee%d000", id) }

// HostName returns the name of the i-th (1-based) UNI host of domain id.
func HostName(id, i int) string { return fmt.Sprintf("%s%d1%d", HostPrefix, id, i) }

// ControllerName returns the name of the i-th (0-based) CO controller.
func ControllerName(id, i int) string { return fmt.Sprintf("c%d%d", id, i) }

// MetroControllerName returns the name of the i-th (1-based) metro controller
// bound to the EE edge switch.
func MetroControllerName(id, i int) string { return fmt.Sprintf("mc%d0%d", id, i) }
