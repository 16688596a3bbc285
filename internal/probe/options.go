package probe

import (
	"time"

	"ecordtopo/internal/logging"
)

// Option is a functional option for configuring ControllerProbe
type Option func(*ControllerProbe)

// WithPorts sets the ports to probe
// Format: "6633,6653" or "6600-6699"
func WithPorts(ports string) Option {
	return func(p *ControllerProbe) {
		if validated, err := parsePorts(ports); err == nil {
			p.ports = validated
		}
	}
}

// WithTiming sets the nmap timing template, clamped to 0 (paranoid) - 5 (insane)
func WithTiming(t int) Option {
	return func(p *ControllerProbe) {
		switch {
		case t < 0:
			t = 0
		case t > 5:
			t = 5
		}
		p.timing = t
	}
}

// WithTimeout bounds the whole probe
func WithTimeout(d time.Duration) Option {
	return func(p *ControllerProbe) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxRetries caps port scan probe retransmissions
func WithMaxRetries(n int) Option {
	return func(p *ControllerProbe) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithLogger sets the logger warnings go to
func WithLogger(l logging.Logger) Option {
	return func(p *ControllerProbe) {
		if l != nil {
			p.log = l
		}
	}
}

// withScanner replaces the nmap runner, for tests
func withScanner(s scanFunc) Option {
	return func(p *ControllerProbe) {
		p.scan = s
	}
}
