package narrative

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed output.schema.json
var outputSchema []byte

const outputSchemaURL = "https://caseguard.schemas.local/narrative/output.schema.json"

// ErrMalformedOutput marks generated content that is not a single JSON
// object matching the output schema.
var ErrMalformedOutput = errors.New("narrative: malformed generated output")

// Validator checks raw generated content against the output schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(outputSchemaURL, bytes.NewReader(outputSchema)); err != nil {
		return nil, fmt.Errorf("narrative: schema load failed: %w", err)
	}
	compiled, err := c.Compile(outputSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("narrative: schema compile failed: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Decode validates raw and decodes it. Nothing is trimmed, repaired or
// defaulted: content that fails validation is rejected whole.
func (v *Validator) Decode(raw []byte) (Output, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Output{}, fmt.Errorf("%w: not JSON: %v", ErrMalformedOutput, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return out, nil
}
