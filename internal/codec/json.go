package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"ecordtopo/internal/srconfig"
)

// JSONCodec encodes the document structure as plain JSON. It is the format
// the deployment ledger stores.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse decodes a document from JSON. Unknown fields and inconsistent
// documents are rejected.
func (c *JSONCodec) Parse(r io.Reader) (*srconfig.Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	doc := new(srconfig.Document)
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return checked(doc)
}

// Export encodes a document as indented JSON
func (c *JSONCodec) Export(doc *srconfig.Document, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// checked returns doc when it passes Document.Validate.
func checked(doc *srconfig.Document) (*srconfig.Document, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document for domain %d: %w", doc.DomainID, err)
	}
	return doc, nil
}
