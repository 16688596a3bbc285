package emulation

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"
)

type recordingMover struct {
	dev string
	pid int
	err error
}

func (m *recordingMover) MoveToNamespace(_ context.Context, dev string, pid int) error {
	m.dev, m.pid = dev, pid
	return m.err
}

type fakeCommander struct {
	cmds    []string
	outputs map[string]string
	failOn  string
}

func (f *fakeCommander) Run(_ context.Context, cmd string) (string, error) {
	f.cmds = append(f.cmds, cmd)
	if f.failOn != "" && strings.Contains(cmd, f.failOn) {
		return "boom", errors.New("exit status 1")
	}
	for k, v := range f.outputs {
		if strings.Contains(cmd, k) {
			return v, nil
		}
	}
	return "", nil
}

func TestAttacherFor(t *testing.T) {
	if _, ok := AttacherFor(Node{Options: SwitchOptions{Attach: AttachDirect}}, nil).(DirectAttacher); !ok {
		t.Error("direct switch should get DirectAttacher")
	}
	if _, ok := AttacherFor(Node{Options: SwitchOptions{Attach: AttachNamespaceMove}}, nil).(NamespaceAttacher); !ok {
		t.Error("netns switch should get NamespaceAttacher")
	}
}

func TestNamespaceAttacherMovesThenAdds(t *testing.T) {
	n := NewNet()
	sw, _ := n.AddSwitch("leaf101", SwitchOptions{})

	mover := &recordingMover{}
	intf, err := NamespaceAttacher{Mover: mover}.Attach(context.Background(), n, "leaf101", "eth1")
	if err != nil {
		t.Fatal(err)
	}
	if mover.dev != "eth1" || mover.pid != sw.PID {
		t.Errorf("mover called with %s/%d, want eth1/%d", mover.dev, mover.pid, sw.PID)
	}
	if intf.Name != "eth1" || !intf.External {
		t.Errorf("intf = %+v", intf)
	}
}

func TestNamespaceAttacherMoveFailure(t *testing.T) {
	n := NewNet()
	n.AddSwitch("leaf101", SwitchOptions{})

	mover := &recordingMover{err: errors.New("no such device")}
	if _, err := (NamespaceAttacher{Mover: mover}).Attach(context.Background(), n, "leaf101", "eth9"); err == nil {
		t.Fatal("expected error")
	}
	intfs, _ := n.Interfaces("leaf101")
	if len(intfs) != 0 {
		t.Errorf("failed move should not add an interface, got %v", intfs)
	}
}

func TestCommandMover(t *testing.T) {
	cmd := &fakeCommander{}
	if err := (CommandMover{Cmd: cmd}).MoveToNamespace(context.Background(), "eth1", 1234); err != nil {
		t.Fatal(err)
	}
	if len(cmd.cmds) != 1 || cmd.cmds[0] != "ip link set dev eth1 netns 1234" {
		t.Errorf("commands = %v", cmd.cmds)
	}
}

func TestCommandVLANTagger(t *testing.T) {
	n := NewNet()
	n.AddHost("h111")
	addr := netip.MustParsePrefix("10.0.100.1/24")

	t.Run("creates sub-interface", func(t *testing.T) {
		cmd := &fakeCommander{}
		tagger := CommandVLANTagger{Runtime: n, Cmd: cmd}
		if err := tagger.AddVLAN(context.Background(), "h111", "h111-eth0", 100, addr); err != nil {
			t.Fatal(err)
		}
		if len(cmd.cmds) != 4 {
			t.Fatalf("commands = %v", cmd.cmds)
		}
		if !strings.Contains(cmd.cmds[1], "type vlan id 100") {
			t.Errorf("vlan add = %q", cmd.cmds[1])
		}
		if !strings.HasPrefix(cmd.cmds[2], "nsenter -t ") || !strings.Contains(cmd.cmds[2], "10.0.100.1/24") {
			t.Errorf("addr add = %q", cmd.cmds[2])
		}
	})

	t.Run("existing sub-interface is kept", func(t *testing.T) {
		cmd := &fakeCommander{outputs: map[string]string{
			"link show": "7: h111-eth0.100@h111-eth0: <BROADCAST,MULTICAST,UP> mtu 1500\n",
		}}
		tagger := CommandVLANTagger{Runtime: n, Cmd: cmd}
		if err := tagger.AddVLAN(context.Background(), "h111", "h111-eth0", 100, addr); err != nil {
			t.Fatal(err)
		}
		if len(cmd.cmds) != 1 {
			t.Errorf("expected only the listing command, got %v", cmd.cmds)
		}
	})

	t.Run("command failure", func(t *testing.T) {
		cmd := &fakeCommander{failOn: "ip addr add"}
		tagger := CommandVLANTagger{Runtime: n, Cmd: cmd}
		if err := tagger.AddVLAN(context.Background(), "h111", "h111-eth0", 200, addr); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNewSSHCommanderValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SSHConfig
		wantErr bool
	}{
		{"missing address", SSHConfig{User: "root", Password: "x"}, true},
		{"missing user", SSHConfig{Address: "h:22", Password: "x"}, true},
		{"missing credentials", SSHConfig{Address: "h:22", User: "root"}, true},
		{"password", SSHConfig{Address: "h:22", User: "root", Password: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewSSHCommander(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.cfg.Timeout == 0 {
				t.Error("default timeout not applied")
			}
		})
	}
}
