package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"ecordtopo/internal/emulation"
	"ecordtopo/internal/srconfig"
)

type docsFunc func(ctx context.Context, id int) (*srconfig.Document, error)

func (f docsFunc) Export(ctx context.Context, id int) (*srconfig.Document, error) { return f(ctx, id) }

func lineTopology(t *testing.T) *emulation.Net {
	t.Helper()
	rt := emulation.NewNet()
	steps := []error{}
	_, err := rt.AddSwitch("s1", emulation.SwitchOptions{})
	steps = append(steps, err)
	_, err = rt.AddSwitch("s2", emulation.SwitchOptions{})
	steps = append(steps, err)
	_, err = rt.AddHost("h1")
	steps = append(steps, err)
	_, err = rt.AddHost("h2")
	steps = append(steps, err)
	_, err = rt.AddController("c0", "10.0.0.1")
	steps = append(steps, err)
	steps = append(steps, rt.BindController("s1", "c0"))
	_, err = rt.AddLink("h1", "s1", emulation.LinkOptions{})
	steps = append(steps, err)
	_, err = rt.AddLink("s1", "s2", emulation.LinkOptions{})
	steps = append(steps, err)
	_, err = rt.AddLink("s2", "h2", emulation.LinkOptions{})
	steps = append(steps, err)
	for _, err := range steps {
		if err != nil {
			t.Fatal(err)
		}
	}
	return rt
}

func run(t *testing.T, rt emulation.Runtime, docs DocumentSource, input string) string {
	t.Helper()
	var out bytes.Buffer
	if err := New(rt, docs, strings.NewReader(input), &out).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestCommands(t *testing.T) {
	rt := lineTopology(t)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"nodes", "nodes\n", []string{"available nodes are:", "s1 s2 h1 h2 c0"}},
		{"links", "links\n", []string{"h1-eth0<->s1-eth1", "s1-eth2<->s2-eth1", "s2-eth2<->h2-eth0"}},
		{"net", "net\n", []string{"h1 h1-eth0:s1-eth1", "s1 s1-eth1:h1-eth0 s1-eth2:s2-eth1", "c0"}},
		{"dump", "dump\n", []string{"<Switch s1:", "controllers=c0", "<Host h1:", "<Controller c0: 10.0.0.1"}},
		{"intfs", "intfs h1\n", []string{"h1-eth0", "10.0.0.1/8"}},
		{"path", "path h1 h2\n", []string{"h1 -> s1 -> s2 -> h2 (3 hops)"}},
		{"help", "help\n", []string{"path <from> <to>", "exit | quit"}},
		{"unknown", "frobnicate\n", []string{"*** Unknown command: frobnicate"}},
		{"path usage", "path h1\n", []string{"*** path: usage: path <from> <to>"}},
		{"path unknown node", "path h1 h9\n", []string{"*** path:", "node not found"}},
		{"blank and comment lines", "\n# comment\nnodes\n", []string{"available nodes are:"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, rt, nil, tt.input)
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestExitStopsReading(t *testing.T) {
	rt := lineTopology(t)
	for _, word := range []string{"exit", "quit"} {
		out := run(t, rt, nil, word+"\nnodes\n")
		if strings.Contains(out, "available nodes") {
			t.Errorf("%s did not end the session:\n%s", word, out)
		}
	}
}

func TestRunEndsOnEOF(t *testing.T) {
	out := run(t, lineTopology(t), nil, "nodes")
	if !strings.Contains(out, "available nodes") {
		t.Errorf("last line without newline not executed:\n%s", out)
	}
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(lineTopology(t), nil, strings.NewReader("nodes\n"), &bytes.Buffer{}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRunCancelWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := New(lineTopology(t), nil, pr, io.Discard)
	errc := make(chan error, 1)
	go func() { errc <- sess.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel while blocked on input")
	}
}

func TestRunCancelAfterCommands(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := New(lineTopology(t), nil, pr, io.Discard)
	errc := make(chan error, 1)
	go func() { errc <- sess.Run(ctx) }()

	if _, err := io.WriteString(pw, "nodes\n"); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestExportCommand(t *testing.T) {
	docs := docsFunc(func(_ context.Context, id int) (*srconfig.Document, error) {
		if id != 1 {
			return nil, errors.New("unknown domain")
		}
		return &srconfig.Document{DomainID: 1, Switches: []srconfig.SwitchEntry{
			{Position: 1, ID: "101", Name: "leaf101", Role: srconfig.RoleLeaf, Gateway: "192.168.1.1", MAC: "00:00:00:01:01:80"},
		}}, nil
	})
	rt := lineTopology(t)

	out := run(t, rt, docs, "export 1\nexport 1 yaml\nexport 2\nexport x\n")
	for _, want := range []string{"of:0000000000000101", "switch_id: \"101\"", "*** export: unknown domain", `*** export: domain id "x"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out = run(t, rt, nil, "export 1\n")
	if !strings.Contains(out, "no document source") {
		t.Errorf("export without source:\n%s", out)
	}
}
