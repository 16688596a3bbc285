package codec

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ecordtopo/internal/srconfig"
)

//go:embed schema/netcfg.schema.json
var netcfgSchema []byte

const netcfgSchemaURL = "https://ecordtopo.invalid/schema/netcfg.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// NetcfgCodec writes documents in the network-config shape an SDN
// controller's segment-routing application reads: devices, ports and hosts
// keyed by device URI.
type NetcfgCodec struct{}

// NewNetcfgCodec creates a new netcfg codec
func NewNetcfgCodec() *NetcfgCodec {
	return &NetcfgCodec{}
}

// Format returns the codec format identifier
func (c *NetcfgCodec) Format() string {
	return "netcfg"
}

type netcfg struct {
	Devices map[string]netcfgDevice `json:"devices"`
	Ports   map[string]netcfgPort   `json:"ports"`
	Hosts   map[string]netcfgHost   `json:"hosts"`
}

type netcfgDevice struct {
	SegmentRouting struct {
		Name          string `json:"name"`
		NodeSID       int    `json:"ipv4NodeSid"`
		Loopback      string `json:"ipv4Loopback"`
		RouterMAC     string `json:"routerMac"`
		IsEdgeRouter  bool   `json:"isEdgeRouter"`
		AdjacencySIDs []int  `json:"adjacencySids"`
	} `json:"segmentrouting"`
}

type netcfgPort struct {
	Interfaces []netcfgInterface `json:"interfaces"`
}

type netcfgInterface struct {
	Name string   `json:"name,omitempty"`
	IPs  []string `json:"ips"`
}

type netcfgHost struct {
	Basic struct {
		Name      string   `json:"name,omitempty"`
		IPs       []string `json:"ips"`
		Locations []string `json:"locations"`
	} `json:"basic"`
}

// DeviceURI returns the OpenFlow device URI of a switch id.
func DeviceURI(switchID string) string {
	if len(switchID) >= 16 {
		return "of:" + switchID
	}
	return "of:" + strings.Repeat("0", 16-len(switchID)) + switchID
}

// Export converts doc to netcfg JSON, validates it against the embedded
// schema and writes it.
func (c *NetcfgCodec) Export(doc *srconfig.Document, w io.Writer) error {
	cfg, err := toNetcfg(doc)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode netcfg: %w", err)
	}
	if err := ValidateNetcfg(buf.Bytes()); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// ValidateNetcfg checks raw netcfg JSON against the embedded schema.
func ValidateNetcfg(raw []byte) error {
	schema, err := netcfgSchemaCompiled()
	if err != nil {
		return err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to parse netcfg: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("netcfg schema: %w", err)
	}
	return nil
}

func netcfgSchemaCompiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(netcfgSchemaURL, bytes.NewReader(netcfgSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(netcfgSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

func toNetcfg(doc *srconfig.Document) (*netcfg, error) {
	cfg := &netcfg{
		Devices: make(map[string]netcfgDevice),
		Ports:   make(map[string]netcfgPort),
		Hosts:   make(map[string]netcfgHost),
	}

	for _, s := range doc.Switches {
		sid, err := strconv.Atoi(s.ID)
		if err != nil {
			return nil, fmt.Errorf("switch %s: id is not numeric: %w", s.Name, err)
		}
		uri := DeviceURI(s.ID)

		var dev netcfgDevice
		dev.SegmentRouting.Name = s.Name
		dev.SegmentRouting.NodeSID = sid
		dev.SegmentRouting.Loopback = s.Gateway
		dev.SegmentRouting.RouterMAC = s.MAC
		dev.SegmentRouting.IsEdgeRouter = s.Role == srconfig.RoleLeaf
		dev.SegmentRouting.AdjacencySIDs = []int{}
		cfg.Devices[uri] = dev

		for _, p := range s.Ports {
			key := fmt.Sprintf("%s/%d", uri, p.Port)
			cfg.Ports[key] = netcfgPort{Interfaces: []netcfgInterface{{Name: p.Name, IPs: p.Subnets}}}
		}
	}

	ids := make(map[string]string, len(doc.Switches))
	for _, s := range doc.Switches {
		ids[s.Name] = s.ID
	}

	for _, h := range doc.Hosts {
		if h.MAC == "" {
			return nil, fmt.Errorf("host %s: no MAC to key the host entry", h.Name)
		}
		var host netcfgHost
		host.Basic.Name = h.Name
		host.Basic.IPs = []string{}
		for _, ip := range h.IPs {
			p, err := netip.ParsePrefix(ip)
			if err != nil {
				return nil, fmt.Errorf("host %s: %w", h.Name, err)
			}
			host.Basic.IPs = append(host.Basic.IPs, p.Addr().String())
		}
		host.Basic.Locations = []string{}
		if loc, ok := hostLocation(h.Location, ids); ok {
			host.Basic.Locations = append(host.Basic.Locations, loc)
		}
		cfg.Hosts[strings.ToLower(h.MAC)+"/-1"] = host
	}
	return cfg, nil
}

// hostLocation converts a "<switch>/<port>" location into a connect point on
// a document switch. Hosts attached to switches outside the document, such
// as UNI hosts behind an EE switch, have no location the controller knows.
func hostLocation(loc string, ids map[string]string) (string, bool) {
	i := strings.LastIndex(loc, "/")
	if i < 0 {
		return "", false
	}
	id, ok := ids[loc[:i]]
	if !ok {
		return "", false
	}
	port, err := strconv.Atoi(loc[i+1:])
	if err != nil || port < 1 {
		return "", false
	}
	return fmt.Sprintf("%s/%d", DeviceURI(id), port), true
}
