package emulation

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"
)

// NetlinkMover moves devices between namespaces on the local host through
// netlink. It needs CAP_NET_ADMIN.
type NetlinkMover struct{}

// MoveToNamespace looks up dev in the current namespace and moves it into
// the namespace of pid.
func (NetlinkMover) MoveToNamespace(ctx context.Context, dev string, pid int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	link, err := netlink.LinkByName(dev)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", dev, err)
	}
	if err := netlink.LinkSetNsPid(link, pid); err != nil {
		return fmt.Errorf("set netns of %s: %w", dev, err)
	}
	return nil
}
