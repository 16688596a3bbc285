package config

import (
	"strings"
	"time"
)

// Posture sets how aggressively the controller preflight probe scans.
type Posture string

const (
	PostureStealth    Posture = "stealth"    // slow scan, single retry budget
	PostureCautious   Posture = "cautious"   // polite timing
	PostureBalanced   Posture = "balanced"   // default
	PostureAggressive Posture = "aggressive" // fast, for lab networks
)

// ParsePosture converts a string to Posture, ignoring case and defaulting to
// PostureBalanced
func ParsePosture(s string) Posture {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stealth":
		return PostureStealth
	case "cautious":
		return PostureCautious
	case "balanced":
		return PostureBalanced
	case "aggressive":
		return PostureAggressive
	default:
		return PostureBalanced
	}
}

// ProbeProfile holds the scan timing derived from a posture.
type ProbeProfile struct {
	Timeout    time.Duration `yaml:"timeout"`
	Timing     int           `yaml:"timing"` // nmap timing template, 0 (paranoid) to 5 (insane)
	MaxRetries int           `yaml:"max_retries"`
}

// PostureProfiles maps postures to their default probe profiles
var PostureProfiles = map[Posture]ProbeProfile{
	PostureStealth: {
		Timeout:    2 * time.Minute,
		Timing:     1,
		MaxRetries: 1,
	},
	PostureCautious: {
		Timeout:    time.Minute,
		Timing:     2,
		MaxRetries: 1,
	},
	PostureBalanced: {
		Timeout:    30 * time.Second,
		Timing:     3,
		MaxRetries: 2,
	},
	PostureAggressive: {
		Timeout:    10 * time.Second,
		Timing:     4,
		MaxRetries: 3,
	},
}

// GetProfile returns the probe profile for a posture
func (p Posture) GetProfile() ProbeProfile {
	if profile, ok := PostureProfiles[p]; ok {
		return profile
	}
	return PostureProfiles[PostureBalanced]
}
