// Package codec encodes segment-routing documents for controllers and
// operators.
package codec

import (
	"fmt"
	"io"

	"ecordtopo/internal/srconfig"
)

// Importer reads a document back from an encoded form.
type Importer interface {
	Parse(r io.Reader) (*srconfig.Document, error)
	Format() string
}

// Exporter writes a document in one format.
type Exporter interface {
	Export(doc *srconfig.Document, w io.Writer) error
	Format() string
}

// ExporterFor returns the exporter registered under format.
func ExporterFor(format string) (Exporter, error) {
	switch format {
	case "", "netcfg":
		return NewNetcfgCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// Extension returns the file extension used for a format.
func Extension(format string) string {
	switch format {
	case "yaml", "yml":
		return ".yaml"
	default:
		return ".json"
	}
}
