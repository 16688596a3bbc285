package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"ecordtopo/internal/srconfig"
)

// YAMLCodec encodes documents as YAML for operators.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse decodes a document from YAML and validates it.
func (c *YAMLCodec) Parse(r io.Reader) (*srconfig.Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	doc := new(srconfig.Document)
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return checked(doc)
}

// Export encodes a document as YAML
func (c *YAMLCodec) Export(doc *srconfig.Document, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
