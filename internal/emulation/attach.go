package emulation

import (
	"context"
	"fmt"
	"strconv"
)

// Attacher hands an existing network device to a running switch.
type Attacher interface {
	Attach(ctx context.Context, rt Runtime, switchName, dev string) (Intf, error)
}

// NamespaceMover moves a device into the network namespace of a process.
type NamespaceMover interface {
	MoveToNamespace(ctx context.Context, dev string, pid int) error
}

// DirectAttacher uses the runtime's own attach support.
type DirectAttacher struct{}

// Attach calls Runtime.AttachInterface.
func (DirectAttacher) Attach(ctx context.Context, rt Runtime, switchName, dev string) (Intf, error) {
	return rt.AttachInterface(switchName, dev)
}

// NamespaceAttacher moves the device into the switch's namespace, then
// registers it with Runtime.AddInterface.
type NamespaceAttacher struct {
	Mover NamespaceMover
}

// Attach performs the namespace move and interface add.
func (a NamespaceAttacher) Attach(ctx context.Context, rt Runtime, switchName, dev string) (Intf, error) {
	sw, err := rt.Get(switchName)
	if err != nil {
		return Intf{}, err
	}
	if a.Mover != nil {
		if err := a.Mover.MoveToNamespace(ctx, dev, sw.PID); err != nil {
			return Intf{}, fmt.Errorf("move %s to %s (pid %d): %w", dev, switchName, sw.PID, err)
		}
	}
	return rt.AddInterface(switchName, dev)
}

// AttacherFor selects the attacher matching the switch's AttachMode tag.
func AttacherFor(sw Node, mover NamespaceMover) Attacher {
	if sw.Options.Attach == AttachDirect {
		return DirectAttacher{}
	}
	return NamespaceAttacher{Mover: mover}
}

// CommandMover moves devices with "ip link set dev <dev> netns <pid>".
type CommandMover struct {
	Cmd Commander
}

// MoveToNamespace runs the ip command through the commander.
func (m CommandMover) MoveToNamespace(ctx context.Context, dev string, pid int) error {
	if m.Cmd == nil {
		return fmt.Errorf("no commander configured")
	}
	cmd := "ip link set dev " + dev + " netns " + strconv.Itoa(pid)
	if out, err := m.Cmd.Run(ctx, cmd); err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}

// NoopMover records nothing and always succeeds. It pairs with the in-memory
// runtime, whose PIDs are not real processes.
type NoopMover struct{}

// MoveToNamespace does nothing.
func (NoopMover) MoveToNamespace(context.Context, string, int) error { return nil }
