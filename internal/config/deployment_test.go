package config

import (
	"errors"
	"reflect"
	"testing"

	"ecordtopo/internal/domain"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name string
		tok  string
		want DomainConfig
	}{
		{
			name: "full token",
			tok:  "1:10.0.0.1:100,200:eth1:eth2",
			want: DomainConfig{ID: 1, Controllers: []string{"10.0.0.1"}, VLANs: []int{100, 200},
				OuterIfs: []string{"eth1"}, InnerIfs: []string{"eth2"}},
		},
		{
			name: "three fields",
			tok:  "2:10.0.0.1,10.0.0.2:300",
			want: DomainConfig{ID: 2, Controllers: []string{"10.0.0.1", "10.0.0.2"}, VLANs: []int{300}},
		},
		{
			name: "empty lists",
			tok:  "3:::",
			want: DomainConfig{ID: 3},
		},
		{
			name: "outer only",
			tok:  "4:10.0.0.9:10:veth0,veth1",
			want: DomainConfig{ID: 4, Controllers: []string{"10.0.0.9"}, VLANs: []int{10},
				OuterIfs: []string{"veth0", "veth1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToken(tt.tok)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseToken(%q) = %+v, want %+v", tt.tok, got, tt.want)
			}
		})
	}
}

func TestParseTokenErrors(t *testing.T) {
	tests := []struct {
		name string
		tok  string
	}{
		{"non-integer id and too few fields", "abc:10.0.0.1"},
		{"too few fields", "1:10.0.0.1"},
		{"non-integer id", "x:10.0.0.1:100"},
		{"zero id", "0:10.0.0.1:100"},
		{"bad vlan", "1:10.0.0.1:vlan1"},
		{"bad controller", "1:controller:100"},
		{"too many fields", "1:10.0.0.1:100:a:b:c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.tok); !errors.Is(err, domain.ErrConfigParse) {
				t.Errorf("ParseToken(%q): expected ErrConfigParse, got %v", tt.tok, err)
			}
		})
	}
}

func TestParseDeployment(t *testing.T) {
	cfg, err := ParseDeployment([]string{"2:10.0.0.2:200", "1:10.0.0.1:100,200:eth1:eth2"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.IDs(), []int{2, 1}) {
		t.Errorf("IDs = %v, want token order [2 1]", cfg.IDs())
	}
	d, ok := cfg.Domain(1)
	if !ok || d.InnerIfs[0] != "eth2" {
		t.Errorf("Domain(1) = %+v, %v", d, ok)
	}

	// accessors hand out copies
	d.VLANs[0] = 999
	again, _ := cfg.Domain(1)
	if again.VLANs[0] != 100 {
		t.Error("DeploymentConfig was mutated through an accessor")
	}
	all := cfg.Domains()
	all[0].Controllers[0] = "mutated"
	if cfg.Domains()[0].Controllers[0] != "10.0.0.2" {
		t.Error("DeploymentConfig was mutated through Domains()")
	}
}

func TestParseDeploymentErrors(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
	}{
		{"empty", nil},
		{"duplicate id", []string{"1:10.0.0.1:100", "1:10.0.0.2:200"}},
		{"one bad token", []string{"1:10.0.0.1:100", "abc:10.0.0.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseDeployment(tt.tokens)
			if !errors.Is(err, domain.ErrConfigParse) {
				t.Errorf("expected ErrConfigParse, got %v", err)
			}
			if cfg.Len() != 0 {
				t.Errorf("partial config returned: %v", cfg.IDs())
			}
		})
	}
}
