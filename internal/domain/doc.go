// Package domain defines the core vocabulary of an E-CORD deployment.
//
// It holds no runtime or infrastructure dependencies: only the sentinel
// errors shared across packages, the per-domain lifecycle state machine and
// the node naming scheme.
//
// # Lifecycle
//
// Every domain moves through Unbuilt, Built, Stitched, Running and Stopped
// in that order. State.CanTransition reports whether a step is allowed;
// callers reject anything else with ErrInvalidTransition.
//
// # Naming
//
// Node names encode the domain id and an index so that several domains can
// share one emulation: leaf<d>0<i>, spine<d><i>, ee<d>000, h<d>1<i>, and
// c<d><i> or mc<d>0<i> for CO and metro controllers.
package domain
