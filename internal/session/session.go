// Package session is the operator console that runs after every domain has
// started. It reads one command per line until exit, quit or end of input.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"ecordtopo/internal/codec"
	"ecordtopo/internal/emulation"
	"ecordtopo/internal/srconfig"
	"ecordtopo/internal/topology"
)

// Prompt is printed before every command.
const Prompt = "ecord> "

// DocumentSource exports the segment-routing document of a domain.
type DocumentSource interface {
	Export(ctx context.Context, id int) (*srconfig.Document, error)
}

// Session is one interactive console over a runtime.
type Session struct {
	rt   emulation.Runtime
	docs DocumentSource
	in   io.Reader
	out  io.Writer
}

// New creates a session reading commands from in and writing to out. docs
// may be nil, which disables the export command.
func New(rt emulation.Runtime, docs DocumentSource, in io.Reader, out io.Writer) *Session {
	return &Session{rt: rt, docs: docs, in: in, out: out}
}

type command struct {
	usage string
	help  string
	run   func(s *Session, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":   {"help", "list commands", (*Session).help},
		"nodes":  {"nodes", "list node names", (*Session).nodes},
		"net":    {"net", "list every node with its links", (*Session).net},
		"links":  {"links", "list links with ports", (*Session).links},
		"dump":   {"dump", "show node details", (*Session).dump},
		"intfs":  {"intfs [node]", "show interfaces", (*Session).intfs},
		"path":   {"path <from> <to>", "shortest path between two nodes", (*Session).path},
		"export": {"export <domain> [format]", "print the segment-routing document", (*Session).export},
	}
}

// Run reads and executes commands until exit, quit, end of input or ctx is
// done. Command errors are printed and do not end the session. Input is read
// on a separate goroutine so that cancellation does not wait for a line; a
// read already blocked when Run returns ends with the reader.
func (s *Session) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 0, 4096), 64*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, Prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				return <-errc
			}
			line = l
		}

		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		name, args := fields[0], fields[1:]
		if name == "exit" || name == "quit" {
			return nil
		}

		cmd, ok := commands[name]
		if !ok {
			fmt.Fprintf(s.out, "*** Unknown command: %s\n", name)
			continue
		}
		if err := cmd.run(s, ctx, args); err != nil {
			fmt.Fprintf(s.out, "*** %s: %v\n", name, err)
		}
	}
}

func (s *Session) help(_ context.Context, _ []string) error {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, n := range names {
		fmt.Fprintf(w, "%s\t%s\n", commands[n].usage, commands[n].help)
	}
	fmt.Fprintf(w, "exit | quit\tleave the session\n")
	return w.Flush()
}

func (s *Session) nodes(_ context.Context, _ []string) error {
	var names []string
	for _, n := range s.rt.Nodes() {
		names = append(names, n.Name)
	}
	fmt.Fprintf(s.out, "available nodes are: \n%s\n", strings.Join(names, " "))
	return nil
}

func (s *Session) net(_ context.Context, _ []string) error {
	for _, n := range s.rt.Nodes() {
		if n.Kind == emulation.KindController {
			fmt.Fprintln(s.out, n.Name)
			continue
		}
		intfs, err := s.rt.Interfaces(n.Name)
		if err != nil {
			return err
		}
		parts := []string{n.Name}
		for _, i := range intfs {
			if i.VLAN != 0 {
				continue
			}
			if i.Linked() {
				parts = append(parts, fmt.Sprintf("%s:%s", i.Name, i.PeerIntf))
			} else {
				parts = append(parts, fmt.Sprintf("%s:", i.Name))
			}
		}
		fmt.Fprintln(s.out, strings.Join(parts, " "))
	}
	return nil
}

func (s *Session) links(_ context.Context, _ []string) error {
	for _, l := range s.rt.Links() {
		fmt.Fprintf(s.out, "%s<->%s (%d/%d)\n", l.Intf1, l.Intf2, l.Port1, l.Port2)
	}
	return nil
}

func (s *Session) dump(_ context.Context, _ []string) error {
	for _, n := range s.rt.Nodes() {
		switch n.Kind {
		case emulation.KindController:
			fmt.Fprintf(s.out, "<Controller %s: %s pid=%d>\n", n.Name, n.IP, n.PID)
		case emulation.KindSwitch:
			fmt.Fprintf(s.out, "<Switch %s: pid=%d attach=%s controllers=%s running=%t>\n",
				n.Name, n.PID, n.Options.Attach, strings.Join(n.Controllers, ","), n.Running)
		default:
			fmt.Fprintf(s.out, "<Host %s: pid=%d running=%t>\n", n.Name, n.PID, n.Running)
		}
	}
	return nil
}

func (s *Session) intfs(_ context.Context, args []string) error {
	var names []string
	if len(args) > 0 {
		names = args
	} else {
		for _, n := range s.rt.Nodes() {
			if n.Kind != emulation.KindController {
				names = append(names, n.Name)
			}
		}
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		intfs, err := s.rt.Interfaces(name)
		if err != nil {
			return err
		}
		for _, i := range intfs {
			ip := i.IP
			if ip == "" {
				ip = "-"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", i.Name, i.Port, i.MAC, ip)
		}
	}
	return w.Flush()
}

func (s *Session) path(_ context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", commands["path"].usage)
	}
	hops, err := topology.FromRuntime(s.rt).Path(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s (%d hops)\n", strings.Join(hops, " -> "), len(hops)-1)
	return nil
}

func (s *Session) export(ctx context.Context, args []string) error {
	if s.docs == nil {
		return fmt.Errorf("no document source")
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: %s", commands["export"].usage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("domain id %q: %w", args[0], err)
	}
	format := "netcfg"
	if len(args) == 2 {
		format = args[1]
	}
	enc, err := codec.ExporterFor(format)
	if err != nil {
		return err
	}
	doc, err := s.docs.Export(ctx, id)
	if err != nil {
		return err
	}
	return enc.Export(doc, s.out)
}
