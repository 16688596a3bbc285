// Package config loads the deployment inputs of ecordtopo.
//
// Two sources feed a deployment:
//   - per-domain tokens from the command line, parsed into an immutable
//     DeploymentConfig before any topology object exists;
//   - an optional YAML settings file shaping every domain (fabric size,
//     host counts, metro controllers, switch options, export, ledger, probe,
//     logging, metrics and tracing).
//
// Settings file locations (priority order):
//  1. $ECORDTOPO_CONFIG
//  2. ./ecordtopo.yaml
//  3. ~/.config/ecordtopo/config.yaml
//  4. /etc/ecordtopo/config.yaml
package config

import (
	"fmt"
	"net/netip"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"ecordtopo/internal/domain"
	"ecordtopo/internal/emulation"
)

// Defaults mirrored by DefaultSettings.
const (
	DefaultSpines       = 2
	DefaultLeaves       = 2
	DefaultHosts        = 2
	DefaultDatapathOpts = "--no-local-port --no-slicing"
	DefaultExportFormat = "netcfg"
	DefaultProbePorts   = "6633,6653"
)

// Load finds and loads the settings file, or returns defaults if none found
func Load() (*Settings, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultSettings(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads settings from a specific path
func LoadFromPath(path string) (*Settings, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, path, err
	}

	return &s, path, nil
}

// Save writes settings to the specified path
func (s *Settings) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultSettings returns the settings used when no file exists
func DefaultSettings() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

// applyDefaults fills in missing values with defaults
func (s *Settings) applyDefaults() {
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Fabric.Spines == 0 {
		s.Fabric.Spines = DefaultSpines
	}
	if s.Fabric.Leaves == 0 {
		s.Fabric.Leaves = DefaultLeaves
	}
	if s.Hosts.Default == 0 {
		s.Hosts.Default = DefaultHosts
	}
	if s.Switch.DatapathOpts == "" {
		s.Switch.DatapathOpts = DefaultDatapathOpts
	}
	if s.Switch.AttachMode == "" {
		s.Switch.AttachMode = string(emulation.AttachNamespaceMove)
	}
	if s.Export.Format == "" {
		s.Export.Format = DefaultExportFormat
	}
	if s.Probe.Ports == "" {
		s.Probe.Ports = DefaultProbePorts
	}
	if s.Probe.Posture == "" {
		s.Probe.Posture = PostureBalanced
	}
	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
	if s.Logging.Format == "" {
		s.Logging.Format = "text"
	}
	if s.Tracing.Exporter == "" {
		s.Tracing.Exporter = "stdout"
	}
	if s.Tracing.SampleRatio == 0 {
		s.Tracing.SampleRatio = 1
	}
}

// Validate checks values applyDefaults cannot repair.
func (s *Settings) Validate() error {
	if s.Fabric.Spines < 0 || s.Fabric.Leaves < 0 || s.Hosts.Default < 0 {
		return fmt.Errorf("%w: negative topology size in settings", domain.ErrInvalidTopologySize)
	}
	for d, n := range s.Hosts.PerDomain {
		if n < 1 {
			return fmt.Errorf("%w: domain %d hosts %d", domain.ErrInvalidTopologySize, d, n)
		}
	}
	switch s.Switch.AttachMode {
	case string(emulation.AttachDirect), string(emulation.AttachNamespaceMove):
	default:
		return fmt.Errorf("%w: unknown attach mode %q", domain.ErrConfigParse, s.Switch.AttachMode)
	}
	for d, ips := range s.MetroControllers {
		for _, ip := range ips {
			if _, err := netip.ParseAddr(ip); err != nil {
				return fmt.Errorf("%w: metro controller %q of domain %d", domain.ErrConfigParse, ip, d)
			}
		}
	}
	for d := range s.Gateways {
		if _, err := s.GatewayOverrides(d); err != nil {
			return err
		}
	}
	return nil
}

// UnusedDomains returns the sorted domain ids that per-domain settings name
// but deployed does not contain.
func (s *Settings) UnusedDomains(deployed []int) []int {
	known := make(map[int]bool, len(deployed))
	for _, id := range deployed {
		known[id] = true
	}
	seen := make(map[int]bool)
	var out []int
	note := func(id int) {
		if !known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for id := range s.Hosts.PerDomain {
		note(id)
	}
	for id := range s.MetroControllers {
		note(id)
	}
	for id := range s.Gateways {
		note(id)
	}
	sort.Ints(out)
	return out
}

// HostCount returns the number of UNI hosts for a domain.
func (s *Settings) HostCount(domainID int) int {
	if n, ok := s.Hosts.PerDomain[domainID]; ok {
		return n
	}
	return s.Hosts.Default
}

// MetroControllersFor returns the metro controller IPs bound to a domain's EE.
func (s *Settings) MetroControllersFor(domainID int) []string {
	return append([]string(nil), s.MetroControllers[domainID]...)
}

// GatewayOverrides returns the per-leaf gateway overrides of a domain.
func (s *Settings) GatewayOverrides(domainID int) (map[string]netip.Addr, error) {
	raw := s.Gateways[domainID]
	out := make(map[string]netip.Addr, len(raw))
	for leaf, ip := range raw {
		addr, err := netip.ParseAddr(ip)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("%w: gateway %q for %s", domain.ErrConfigParse, ip, leaf)
		}
		out[leaf] = addr
	}
	return out, nil
}

// SwitchOptions returns the runtime options every switch is created with.
func (s *Settings) SwitchOptions() emulation.SwitchOptions {
	return emulation.SwitchOptions{
		DatapathOpts: s.Switch.DatapathOpts,
		Attach:       emulation.ParseAttachMode(s.Switch.AttachMode),
	}
}

// ProbeProfile returns the posture profile with the timeout override applied.
func (s *Settings) ProbeProfile() ProbeProfile {
	p := s.Probe.Posture.GetProfile()
	if s.Probe.Timeout != nil {
		p.Timeout = s.Probe.Timeout.Duration()
	}
	return p
}

// RemoteTimeout returns the SSH timeout of the remote host, if configured.
func (s *Settings) RemoteTimeout() time.Duration {
	if s.Remote == nil || s.Remote.Timeout == nil {
		return 0
	}
	return s.Remote.Timeout.Duration()
}

// Summary returns a human-readable settings summary
func (s *Settings) Summary() string {
	summary := fmt.Sprintf("Fabric: %dx%d, hosts: %d, attach: %s\n",
		s.Fabric.Spines, s.Fabric.Leaves, s.Hosts.Default, s.Switch.AttachMode)
	summary += fmt.Sprintf("Export: %s", s.Export.Format)
	if s.Export.Dir != "" {
		summary += " -> " + s.Export.Dir
	}
	ids := make([]int, 0, len(s.MetroControllers))
	for d := range s.MetroControllers {
		ids = append(ids, d)
	}
	sort.Ints(ids)
	summary += fmt.Sprintf("\nMetro controllers for domains %v", ids)
	return summary
}
