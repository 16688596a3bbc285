package emulation

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

// VLANTagger is the optional host capability that creates a tagged
// sub-interface on a host interface and addresses it.
type VLANTagger interface {
	AddVLAN(ctx context.Context, host, parent string, vlan int, addr netip.Prefix) error
}

// CommandVLANTagger creates VLAN sub-interfaces on a real host by entering
// the host's network namespace.
type CommandVLANTagger struct {
	Runtime Runtime
	Cmd     Commander
}

// AddVLAN creates <parent>.<vlan>, assigns addr and brings it up. An existing
// sub-interface is left untouched.
func (t CommandVLANTagger) AddVLAN(ctx context.Context, host, parent string, vlan int, addr netip.Prefix) error {
	h, err := t.Runtime.Get(host)
	if err != nil {
		return err
	}
	if h.Kind != KindHost {
		return fmt.Errorf("%w: %s is not a host", ErrWrongKind, host)
	}

	sub := fmt.Sprintf("%s.%d", parent, vlan)
	ns := fmt.Sprintf("nsenter -t %d -n ", h.PID)

	out, err := t.Cmd.Run(ctx, ns+"ip -o link show")
	if err != nil {
		return fmt.Errorf("list links on %s: %w", host, err)
	}
	if hasLink(out, sub) {
		return nil
	}

	for _, cmd := range []string{
		fmt.Sprintf("ip link add link %s name %s type vlan id %d", parent, sub, vlan),
		fmt.Sprintf("ip addr add %s dev %s", addr, sub),
		fmt.Sprintf("ip link set dev %s up", sub),
	} {
		if out, err := t.Cmd.Run(ctx, ns+cmd); err != nil {
			return fmt.Errorf("vlan %d on %s: %w: %s", vlan, host, err, strings.TrimSpace(out))
		}
	}
	return nil
}

// hasLink scans "ip -o link show" output for a device name. Lines look like
// "5: h111-eth0.100@h111-eth0: <...>".
func hasLink(out, name string) bool {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		dev := strings.TrimSuffix(fields[1], ":")
		if i := strings.IndexByte(dev, '@'); i >= 0 {
			dev = dev[:i]
		}
		if dev == name {
			return true
		}
	}
	return false
}
