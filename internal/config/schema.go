package config

import (
	"time"
)

// Settings is the root of the optional settings file. Per-domain deployment
// inputs (controllers, VLANs, interfaces) come from command-line tokens;
// everything here shapes how every domain is built.
type Settings struct {
	Version          int                       `yaml:"version"`
	Fabric           FabricConfig              `yaml:"fabric"`
	Hosts            HostsConfig               `yaml:"hosts"`
	MetroControllers map[int][]string          `yaml:"metro_controllers,omitempty"`
	VLAN             bool                      `yaml:"vlan"`
	Switch           SwitchConfig              `yaml:"switch"`
	Gateways         map[int]map[string]string `yaml:"gateways,omitempty"` // domain -> leaf -> ip
	Export           ExportConfig              `yaml:"export"`
	Database         DatabaseConfig            `yaml:"database"`
	Probe            ProbeConfig               `yaml:"probe"`
	Remote           *RemoteConfig             `yaml:"remote,omitempty"`
	Logging          LoggingConfig             `yaml:"logging"`
	Metrics          MetricsConfig             `yaml:"metrics"`
	Tracing          TracingConfig             `yaml:"tracing"`
}

// FabricConfig sizes every CO fabric.
type FabricConfig struct {
	Spines int `yaml:"spines"`
	Leaves int `yaml:"leaves"`
}

// HostsConfig sets the number of UNI hosts per EE.
type HostsConfig struct {
	Default   int         `yaml:"default"`
	PerDomain map[int]int `yaml:"per_domain,omitempty"`
}

// SwitchConfig holds datapath options and the attach mode of every switch.
type SwitchConfig struct {
	DatapathOpts string `yaml:"datapath_opts"`
	AttachMode   string `yaml:"attach_mode"` // direct or netns
}

// ExportConfig controls writing segment-routing documents to disk.
type ExportConfig struct {
	Dir    string `yaml:"dir,omitempty"`
	Format string `yaml:"format"` // netcfg, json or yaml
}

// DatabaseConfig holds the deployment ledger settings
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"` // empty disables the ledger
}

// ProbeConfig controls the controller reachability preflight.
type ProbeConfig struct {
	Enabled bool      `yaml:"enabled"`
	Ports   string    `yaml:"ports"`
	Posture Posture   `yaml:"posture"`
	Timeout *Duration `yaml:"timeout,omitempty"` // overrides the posture timeout
}

// RemoteConfig points namespace moves and VLAN commands at a remote
// emulation host over SSH.
type RemoteConfig struct {
	Address    string    `yaml:"address"`
	User       string    `yaml:"user"`
	KeyPath    string    `yaml:"key_path,omitempty"`
	Passphrase string    `yaml:"passphrase,omitempty"`
	Password   string    `yaml:"password,omitempty"`
	Timeout    *Duration `yaml:"timeout,omitempty"`
}

// LoggingConfig sets the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig sets the metrics listener; empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// TracingConfig sets up span export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // stdout or otlp
	Endpoint    string  `yaml:"endpoint,omitempty"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
