package topology

import "ecordtopo/internal/emulation"

// Option customizes a fabric or edge build.
type Option func(*buildOptions)

type buildOptions struct {
	switchOpts emulation.SwitchOptions
	vlanHosts  bool
}

// WithSwitchOptions sets the datapath options and attach mode of every
// switch the blueprint creates.
func WithSwitchOptions(opts emulation.SwitchOptions) Option {
	return func(o *buildOptions) {
		o.switchOpts = opts
	}
}

// WithVLANHosts marks the edge hosts as VLAN-capable.
func WithVLANHosts(enabled bool) Option {
	return func(o *buildOptions) {
		o.vlanHosts = enabled
	}
}

func collect(opts []Option) buildOptions {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
