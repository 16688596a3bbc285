// Package probe checks that SDN controllers answer on their OpenFlow ports
// before a deployment starts. Findings are advisory: an unreachable
// controller is logged, never fatal.
package probe

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"

	"ecordtopo/internal/logging"
)

// DefaultPorts are the OpenFlow listener ports of a controller.
const DefaultPorts = "6633,6653"

// Result is the reachability of one controller address.
type Result struct {
	Target    string
	Up        bool
	OpenPorts []int
}

// Reachable reports whether the controller has at least one open port.
func (r Result) Reachable() bool { return r.Up && len(r.OpenPorts) > 0 }

type scanFunc func(ctx context.Context, opts ...nmap.Option) (*nmap.Run, error)

// ControllerProbe scans controller addresses with nmap.
type ControllerProbe struct {
	ports      string
	timing     int
	maxRetries int
	timeout    time.Duration
	log        logging.Logger
	scan       scanFunc
}

// NewControllerProbe creates a probe with balanced defaults.
func NewControllerProbe(opts ...Option) *ControllerProbe {
	p := &ControllerProbe{
		ports:      DefaultPorts,
		timing:     3,
		maxRetries: 2,
		timeout:    30 * time.Second,
		log:        logging.Noop(),
		scan:       runNmap,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe scans every target and returns one result per target, in input
// order. Targets the scan never reported are returned as down.
func (p *ControllerProbe) Probe(ctx context.Context, targets []string) ([]Result, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	run, err := p.scan(ctx, p.options(targets)...)
	if err != nil {
		return nil, fmt.Errorf("probe controllers: %w", err)
	}
	return classify(run, targets), nil
}

// Preflight probes targets and logs a warning for each unreachable one. A
// failed scan is logged and otherwise ignored.
func (p *ControllerProbe) Preflight(ctx context.Context, targets []string) []Result {
	results, err := p.Probe(ctx, targets)
	if err != nil {
		p.log.Warn(ctx, "controller probe skipped", logging.Err(err))
		return nil
	}
	for _, r := range results {
		if r.Reachable() {
			p.log.Debug(ctx, "controller reachable",
				logging.String("target", r.Target), logging.Any("ports", r.OpenPorts))
			continue
		}
		p.log.Warn(ctx, "controller unreachable",
			logging.String("target", r.Target), logging.String("ports", p.ports))
	}
	return results
}

func (p *ControllerProbe) options(targets []string) []nmap.Option {
	return []nmap.Option{
		nmap.WithTargets(targets...),
		nmap.WithPorts(p.ports),
		nmap.WithTimingTemplate(nmap.Timing(p.timing)),
		nmap.WithMaxRetries(p.maxRetries),
		nmap.WithSkipHostDiscovery(),
	}
}

func runNmap(ctx context.Context, opts ...nmap.Option) (*nmap.Run, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}
	result, _, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return result, nil
}

// classify maps scan hosts back onto the requested targets.
func classify(run *nmap.Run, targets []string) []Result {
	seen := make(map[string]Result)
	if run != nil {
		for _, host := range run.Hosts {
			var open []int
			for _, port := range host.Ports {
				if port.State.State == "open" {
					open = append(open, int(port.ID))
				}
			}
			sort.Ints(open)
			for _, addr := range host.Addresses {
				if addr.AddrType == "mac" {
					continue
				}
				seen[addr.Addr] = Result{Target: addr.Addr, Up: host.Status.State == "up", OpenPorts: open}
			}
		}
	}

	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		if r, ok := seen[t]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, Result{Target: t})
	}
	return results
}

// parsePorts validates a port list
// Supported: "6653" or "6633,6653" or "6600-6699"
func parsePorts(portRange string) (string, error) {
	if strings.TrimSpace(portRange) == "" {
		return "", fmt.Errorf("empty port list")
	}
	for _, part := range strings.Split(portRange, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil || start < 1 || start > 65535 {
				return "", fmt.Errorf("invalid port number: %s", lo)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start || end > 65535 {
				return "", fmt.Errorf("invalid port number: %s", hi)
			}
			continue
		}
		port, err := strconv.Atoi(part)
		if err != nil || port < 1 || port > 65535 {
			return "", fmt.Errorf("invalid port number: %s", part)
		}
	}
	return portRange, nil
}
