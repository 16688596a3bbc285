package domain

import "errors"

// Error taxonomy shared by every stage of a deployment. Callers wrap these
// with context and match them with errors.Is.
var (
	// ErrConfigParse reports a malformed configuration token or settings file.
	ErrConfigParse = errors.New("config parse error")
	// ErrInvalidTopologySize reports a non-positive spine, leaf or host count.
	ErrInvalidTopologySize = errors.New("invalid topology size")
	// ErrOutOfRange reports a domain id or index outside the single-octet scheme.
	ErrOutOfRange = errors.New("value out of range")
	// ErrUnsupportedScale reports a switch position that needs more than one digit.
	ErrUnsupportedScale = errors.New("unsupported scale")
	// ErrMissingGateway reports a leaf without a recorded gateway at export time.
	ErrMissingGateway = errors.New("missing gateway")
	// ErrRuntimeAttach reports a failed external interface attachment.
	ErrRuntimeAttach = errors.New("runtime attach failure")
	// ErrInvalidTransition reports a lifecycle step taken from the wrong state.
	ErrInvalidTransition = errors.New("invalid domain state transition")
)
