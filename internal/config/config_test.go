package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ecordtopo/internal/domain"
	"ecordtopo/internal/emulation"
)

func TestParsePosture(t *testing.T) {
	tests := []struct {
		input string
		want  Posture
	}{
		{"stealth", PostureStealth},
		{"aggressive", PostureAggressive},
		{"Cautious", PostureCautious},
		{" balanced ", PostureBalanced},
		{"invalid", PostureBalanced}, // Default
		{"", PostureBalanced},        // Default
	}

	for _, tt := range tests {
		if got := ParsePosture(tt.input); got != tt.want {
			t.Errorf("ParsePosture(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestPostureGetProfile(t *testing.T) {
	postures := []Posture{PostureStealth, PostureCautious, PostureBalanced, PostureAggressive}

	for _, p := range postures {
		profile := p.GetProfile()
		if profile.Timeout == 0 {
			t.Errorf("Posture(%s).GetProfile().Timeout should not be 0", p)
		}
		if profile.Timing < 0 || profile.Timing > 5 {
			t.Errorf("Posture(%s).GetProfile().Timing = %d, out of nmap range", p, profile.Timing)
		}
	}

	// stealth should be slowest, aggressive fastest
	stealth := PostureStealth.GetProfile()
	aggressive := PostureAggressive.GetProfile()
	if stealth.Timeout <= aggressive.Timeout {
		t.Error("Stealth should have longer timeout than aggressive")
	}
	if stealth.Timing >= aggressive.Timing {
		t.Error("Stealth should use a slower timing template than aggressive")
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if s.Version != 1 {
		t.Errorf("Version = %d, want 1", s.Version)
	}
	if s.Fabric.Spines != 2 || s.Fabric.Leaves != 2 {
		t.Errorf("Fabric = %+v, want 2x2", s.Fabric)
	}
	if s.HostCount(7) != 2 {
		t.Errorf("HostCount = %d, want 2", s.HostCount(7))
	}
	if s.Switch.DatapathOpts != "--no-local-port --no-slicing" {
		t.Errorf("DatapathOpts = %q", s.Switch.DatapathOpts)
	}
	if s.SwitchOptions().Attach != emulation.AttachNamespaceMove {
		t.Errorf("Attach = %s, want netns", s.SwitchOptions().Attach)
	}
	if s.Export.Format != "netcfg" {
		t.Errorf("Export.Format = %s", s.Export.Format)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestSettingsAccessors(t *testing.T) {
	s := DefaultSettings()
	s.Hosts.PerDomain = map[int]int{1: 2, 2: 1, 3: 1}
	s.MetroControllers = map[int][]string{1: {"10.128.14.200"}}
	s.Gateways = map[int]map[string]string{1: {"leaf102": "10.1.0.1"}}

	if s.HostCount(2) != 1 {
		t.Errorf("HostCount(2) = %d, want 1", s.HostCount(2))
	}
	if got := s.MetroControllersFor(1); len(got) != 1 || got[0] != "10.128.14.200" {
		t.Errorf("MetroControllersFor(1) = %v", got)
	}
	if got := s.MetroControllersFor(9); len(got) != 0 {
		t.Errorf("MetroControllersFor(9) = %v, want empty", got)
	}
	gws, err := s.GatewayOverrides(1)
	if err != nil {
		t.Fatal(err)
	}
	if gws["leaf102"].String() != "10.1.0.1" {
		t.Errorf("GatewayOverrides = %v", gws)
	}

	timeout := Duration(3 * time.Second)
	s.Probe.Timeout = &timeout
	if s.ProbeProfile().Timeout != 3*time.Second {
		t.Errorf("ProbeProfile timeout override ignored")
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   error
	}{
		{"negative spines", func(s *Settings) { s.Fabric.Spines = -1 }, domain.ErrInvalidTopologySize},
		{"zero hosts override", func(s *Settings) { s.Hosts.PerDomain = map[int]int{1: 0} }, domain.ErrInvalidTopologySize},
		{"bad attach mode", func(s *Settings) { s.Switch.AttachMode = "teleport" }, domain.ErrConfigParse},
		{"bad metro controller", func(s *Settings) { s.MetroControllers = map[int][]string{1: {"x"}} }, domain.ErrConfigParse},
		{"bad gateway", func(s *Settings) { s.Gateways = map[int]map[string]string{1: {"leaf101": "::1"}} }, domain.ErrConfigParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			if err := s.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	s := DefaultSettings()
	s.Fabric.Leaves = 3
	s.MetroControllers = map[int][]string{2: {"10.128.14.201"}}
	s.Probe.Posture = PostureAggressive

	if err := s.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}
	if loaded.Fabric.Leaves != 3 {
		t.Errorf("Fabric.Leaves = %d, want 3", loaded.Fabric.Leaves)
	}
	if loaded.Probe.Posture != PostureAggressive {
		t.Errorf("Probe.Posture = %s", loaded.Probe.Posture)
	}
	if got := loaded.MetroControllersFor(2); len(got) != 1 || got[0] != "10.128.14.201" {
		t.Errorf("MetroControllers = %v", loaded.MetroControllers)
	}
}

func TestLoadFromPathYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ecordtopo.yaml")
	data := `
fabric:
  spines: 3
hosts:
  default: 1
  per_domain:
    1: 2
metro_controllers:
  1: [10.128.14.200]
switch:
  attach_mode: direct
probe:
  enabled: true
  timeout: 5s
`
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	s, _, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if s.Fabric.Spines != 3 || s.Fabric.Leaves != 2 {
		t.Errorf("Fabric = %+v, want 3x2", s.Fabric)
	}
	if s.HostCount(1) != 2 || s.HostCount(2) != 1 {
		t.Errorf("host counts = %d/%d", s.HostCount(1), s.HostCount(2))
	}
	if s.SwitchOptions().Attach != emulation.AttachDirect {
		t.Errorf("attach = %s", s.SwitchOptions().Attach)
	}
	if !s.Probe.Enabled || s.ProbeProfile().Timeout != 5*time.Second {
		t.Errorf("probe = %+v", s.Probe)
	}
}

func TestLoadFromPathErrors(t *testing.T) {
	tmpDir := t.TempDir()
	if _, _, err := LoadFromPath(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(tmpDir, "bad.yaml")
	os.WriteFile(bad, []byte("switch:\n  attach_mode: teleport\n"), 0644)
	if _, _, err := LoadFromPath(bad); !errors.Is(err, domain.ErrConfigParse) {
		t.Errorf("expected ErrConfigParse, got %v", err)
	}
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	if err := DefaultSettings().Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	found := FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should find config in working directory")
	}

	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")

	// explicit path doesn't exist, should fall back
	found = FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}

func TestUnusedDomains(t *testing.T) {
	s := DefaultSettings()
	s.Hosts.PerDomain = map[int]int{1: 2, 4: 1}
	s.MetroControllers = map[int][]string{1: {"10.0.0.100"}, 3: {"10.0.0.101"}}
	s.Gateways = map[int]map[string]string{4: {"leaf401": "192.168.4.254"}}

	got := s.UnusedDomains([]int{1, 2})
	want := []int{3, 4}
	if len(got) != len(want) {
		t.Fatalf("UnusedDomains = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("UnusedDomains[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if got := s.UnusedDomains([]int{1, 3, 4}); len(got) != 0 {
		t.Errorf("UnusedDomains with all deployed = %v", got)
	}
}

func TestSearchPathsOrder(t *testing.T) {
	t.Setenv(EnvConfigPath, "/explicit/settings.yaml")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("HOME", "/home/op")

	got := SearchPaths()
	want := []string{
		"/explicit/settings.yaml",
		"", // working directory, checked by suffix below
		filepath.Join("/xdg", ConfigDirName, "config.yaml"),
		filepath.Join("/home/op", ".config", ConfigDirName, "config.yaml"),
		filepath.Join("/etc", ConfigDirName, "config.yaml"),
	}
	if len(got) != len(want) {
		t.Fatalf("SearchPaths() = %v", got)
	}
	for i := range want {
		if i == 1 {
			if filepath.Base(got[i]) != ConfigFileName {
				t.Errorf("candidate %d = %s, want ./%s", i, got[i], ConfigFileName)
			}
			continue
		}
		if got[i] != want[i] {
			t.Errorf("candidate %d = %s, want %s", i, got[i], want[i])
		}
	}

	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "")
	if n := len(SearchPaths()); n != 3 {
		t.Errorf("without env overrides got %d candidates, want 3", n)
	}
}
