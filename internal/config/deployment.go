package config

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"ecordtopo/internal/domain"
)

// DomainConfig is the parsed token of one CO/EE pair.
type DomainConfig struct {
	ID          int
	Controllers []string
	VLANs       []int
	OuterIfs    []string
	InnerIfs    []string
}

func (d DomainConfig) clone() DomainConfig {
	d.Controllers = append([]string(nil), d.Controllers...)
	d.VLANs = append([]int(nil), d.VLANs...)
	d.OuterIfs = append([]string(nil), d.OuterIfs...)
	d.InnerIfs = append([]string(nil), d.InnerIfs...)
	return d
}

// DeploymentConfig is the immutable set of domains to deploy, in token
// order. Accessors return copies.
type DeploymentConfig struct {
	domains []DomainConfig
}

// Domains returns every domain in token order.
func (c DeploymentConfig) Domains() []DomainConfig {
	out := make([]DomainConfig, len(c.domains))
	for i, d := range c.domains {
		out[i] = d.clone()
	}
	return out
}

// Domain returns the configuration of one domain.
func (c DeploymentConfig) Domain(id int) (DomainConfig, bool) {
	for _, d := range c.domains {
		if d.ID == id {
			return d.clone(), true
		}
	}
	return DomainConfig{}, false
}

// IDs returns the domain ids in token order.
func (c DeploymentConfig) IDs() []int {
	out := make([]int, len(c.domains))
	for i, d := range c.domains {
		out[i] = d.ID
	}
	return out
}

// Len returns the number of domains.
func (c DeploymentConfig) Len() int { return len(c.domains) }

// ParseDeployment parses every token. Any error aborts the whole parse, so
// no domain is built from a partially valid command line.
func ParseDeployment(tokens []string) (DeploymentConfig, error) {
	if len(tokens) == 0 {
		return DeploymentConfig{}, fmt.Errorf("%w: no domain configuration given", domain.ErrConfigParse)
	}
	seen := make(map[int]bool)
	var cfg DeploymentConfig
	for _, tok := range tokens {
		d, err := ParseToken(tok)
		if err != nil {
			return DeploymentConfig{}, err
		}
		if seen[d.ID] {
			return DeploymentConfig{}, fmt.Errorf("%w: domain %d configured twice", domain.ErrConfigParse, d.ID)
		}
		seen[d.ID] = true
		cfg.domains = append(cfg.domains, d)
	}
	return cfg, nil
}

// ParseToken parses "domainId:controllerIps:vlanIds[:outerIfs[:innerIfs]]".
// List fields are comma-separated; empty fields yield empty lists.
func ParseToken(tok string) (DomainConfig, error) {
	fields := strings.Split(tok, ":")
	if len(fields) < 3 {
		return DomainConfig{}, fmt.Errorf("%w: %q: need at least a domain id, controllers and vlans", domain.ErrConfigParse, tok)
	}
	if len(fields) > 5 {
		return DomainConfig{}, fmt.Errorf("%w: %q: too many fields", domain.ErrConfigParse, tok)
	}

	id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return DomainConfig{}, fmt.Errorf("%w: %q: domain id must be an integer", domain.ErrConfigParse, tok)
	}
	if id < 1 {
		return DomainConfig{}, fmt.Errorf("%w: %q: domain id must be positive", domain.ErrConfigParse, tok)
	}

	d := DomainConfig{ID: id}
	for _, ip := range splitList(fields[1]) {
		if _, err := netip.ParseAddr(ip); err != nil {
			return DomainConfig{}, fmt.Errorf("%w: %q: invalid controller ip %q", domain.ErrConfigParse, tok, ip)
		}
		d.Controllers = append(d.Controllers, ip)
	}
	for _, v := range splitList(fields[2]) {
		vlan, err := strconv.Atoi(v)
		if err != nil {
			return DomainConfig{}, fmt.Errorf("%w: %q: vlan %q must be an integer", domain.ErrConfigParse, tok, v)
		}
		d.VLANs = append(d.VLANs, vlan)
	}
	if len(fields) > 3 {
		d.OuterIfs = splitList(fields[3])
	}
	if len(fields) > 4 {
		d.InnerIfs = splitList(fields[4])
	}
	return d, nil
}

func splitList(field string) []string {
	var out []string
	for _, item := range strings.Split(field, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
