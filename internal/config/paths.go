package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit settings file.
	EnvConfigPath = "ECORDTOPO_CONFIG"
	// ConfigFileName is looked up in the working directory.
	ConfigFileName = "ecordtopo.yaml"
	// ConfigDirName is the directory under XDG, ~/.config and /etc.
	ConfigDirName = "ecordtopo"
)

// SearchPaths returns the settings file candidates in priority order:
// $ECORDTOPO_CONFIG, ./ecordtopo.yaml, $XDG_CONFIG_HOME/ecordtopo/config.yaml,
// ~/.config/ecordtopo/config.yaml and /etc/ecordtopo/config.yaml. Unset
// variables drop their candidate.
func SearchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	if abs, err := filepath.Abs(ConfigFileName); err == nil {
		paths = append(paths, abs)
	} else {
		paths = append(paths, ConfigFileName)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath returns the first existing candidate of SearchPaths, or ""
// when there is none and built-in defaults apply.
func FindConfigPath() string {
	for _, p := range SearchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}
