package codec

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"ecordtopo/internal/srconfig"
)

func sampleDoc() *srconfig.Document {
	return &srconfig.Document{
		DomainID: 1,
		Switches: []srconfig.SwitchEntry{
			{Position: 1, ID: "101", Name: "leaf101", Role: srconfig.RoleLeaf, Gateway: "192.168.1.1", MAC: "00:00:00:01:01:80",
				Ports: []srconfig.PortEntry{{Port: 3, Name: "eth1", Subnets: []string{"192.168.1.1/24"}}}},
			{Position: 2, ID: "102", Name: "leaf102", Role: srconfig.RoleLeaf, Gateway: "192.168.1.2", MAC: "00:00:00:01:02:80"},
			{Position: 3, ID: "103", Name: "spine11", Role: srconfig.RoleSpine, Gateway: "192.168.1.3", MAC: "00:00:00:01:03:80"},
		},
		Hosts: []srconfig.HostEntry{
			{Name: "h111", MAC: "02:ff:0a:11:11:01", IPs: []string{"10.0.100.1/24"}, Location: "ee1000/1"},
		},
	}
}

func TestNetcfgExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewNetcfgCodec().Export(sampleDoc(), &buf); err != nil {
		t.Fatal(err)
	}

	var out map[string]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}

	dev, ok := out["devices"]["of:0000000000000101"].(map[string]any)
	if !ok {
		t.Fatalf("device missing: %v", out["devices"])
	}
	sr := dev["segmentrouting"].(map[string]any)
	if sr["ipv4NodeSid"] != float64(101) || sr["isEdgeRouter"] != true {
		t.Errorf("segmentrouting = %v", sr)
	}
	spine := out["devices"]["of:0000000000000103"].(map[string]any)["segmentrouting"].(map[string]any)
	if spine["isEdgeRouter"] != false {
		t.Errorf("spine marked as edge router")
	}
	if _, ok := out["ports"]["of:0000000000000101/3"]; !ok {
		t.Errorf("port binding missing: %v", out["ports"])
	}
	host := out["hosts"]["02:ff:0a:11:11:01/-1"].(map[string]any)["basic"].(map[string]any)
	if ips := host["ips"].([]any); len(ips) != 1 || ips[0] != "10.0.100.1" {
		t.Errorf("host ips = %v", ips)
	}
}

func TestNetcfgHostLocations(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     []any
	}{
		{"fabric attached", "leaf102/4", []any{"of:0000000000000102/4"}},
		{"outside the fabric", "ee1000/1", []any{}},
		{"unlinked", "", []any{}},
		{"bad port", "leaf102/x", []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := sampleDoc()
			doc.Hosts[0].Location = tt.location

			var buf bytes.Buffer
			if err := NewNetcfgCodec().Export(doc, &buf); err != nil {
				t.Fatal(err)
			}
			var out map[string]map[string]any
			if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
				t.Fatal(err)
			}
			host := out["hosts"]["02:ff:0a:11:11:01/-1"].(map[string]any)["basic"].(map[string]any)
			if got := host["locations"].([]any); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("locations = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNetcfgRejectsBadHosts(t *testing.T) {
	noMAC := sampleDoc()
	noMAC.Hosts[0].MAC = ""
	if err := NewNetcfgCodec().Export(noMAC, &bytes.Buffer{}); err == nil {
		t.Error("expected error for host without MAC")
	}

	badIP := sampleDoc()
	badIP.Hosts[0].IPs = []string{"10.0.100.1"}
	if err := NewNetcfgCodec().Export(badIP, &bytes.Buffer{}); err == nil {
		t.Error("expected error for host address without prefix length")
	}
}

func TestNetcfgDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	NewNetcfgCodec().Export(sampleDoc(), &a)
	NewNetcfgCodec().Export(sampleDoc(), &b)
	if a.String() != b.String() {
		t.Error("netcfg output is not byte-identical across exports")
	}
}

func TestNetcfgRejectsInvalid(t *testing.T) {
	doc := sampleDoc()
	doc.Switches[0].MAC = "not-a-mac"
	if err := NewNetcfgCodec().Export(doc, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "schema") {
		t.Errorf("expected schema error, got %v", err)
	}

	doc = sampleDoc()
	doc.Switches[0].ID = "leaf"
	if err := NewNetcfgCodec().Export(doc, &bytes.Buffer{}); err == nil {
		t.Error("expected error for non-numeric switch id")
	}

	if err := ValidateNetcfg([]byte(`{"devices":{"bogus":{}},"ports":{},"hosts":{}}`)); err == nil {
		t.Error("expected schema error for bad device key")
	}
}

func TestRoundTrip(t *testing.T) {
	codecs := []interface {
		Importer
		Exporter
	}{NewJSONCodec(), NewYAMLCodec()}

	for _, c := range codecs {
		t.Run(c.Format(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := c.Export(sampleDoc(), &buf); err != nil {
				t.Fatal(err)
			}
			got, err := c.Parse(&buf)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, sampleDoc()) {
				t.Errorf("round trip mismatch:\n%+v\n%+v", got, sampleDoc())
			}
		})
	}
}

func TestExporterFor(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{"", "netcfg", false},
		{"netcfg", "netcfg", false},
		{"json", "json", false},
		{"yml", "yaml", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		e, err := ExporterFor(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExporterFor(%q) err = %v", tt.format, err)
			continue
		}
		if err == nil && e.Format() != tt.want {
			t.Errorf("ExporterFor(%q) = %s, want %s", tt.format, e.Format(), tt.want)
		}
	}
	if Extension("yaml") != ".yaml" || Extension("netcfg") != ".json" {
		t.Error("unexpected extensions")
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	dup := sampleDoc()
	dup.Switches[1].ID = "101"

	badSubnet := sampleDoc()
	badSubnet.Switches[0].Ports[0].Subnets = []string{"192.168.1.1"}

	codecs := []interface {
		Importer
		Exporter
	}{NewJSONCodec(), NewYAMLCodec()}

	for _, c := range codecs {
		for name, doc := range map[string]*srconfig.Document{"duplicate id": dup, "bare subnet": badSubnet} {
			t.Run(c.Format()+"/"+name, func(t *testing.T) {
				var buf bytes.Buffer
				if err := c.Export(doc, &buf); err != nil {
					t.Fatal(err)
				}
				if _, err := c.Parse(&buf); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	}

	t.Run("json unknown field", func(t *testing.T) {
		if _, err := NewJSONCodec().Parse(strings.NewReader(`{"domainId":1,"extra":true}`)); err == nil {
			t.Error("expected error for unknown field")
		}
	})
	t.Run("yaml unknown field", func(t *testing.T) {
		if _, err := NewYAMLCodec().Parse(strings.NewReader("domain_id: 1\nextra: true\n")); err == nil {
			t.Error("expected error for unknown field")
		}
	})
}
