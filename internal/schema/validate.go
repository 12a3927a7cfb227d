package schema

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator holds the compiled JSON schema. Compile once per run; Validate is safe for
// concurrent use.
type Validator struct {
	compiled *jsonschema.Schema
}

func NewValidator(s *Schema) (*Validator, error) {
	b, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, errors.Wrap(err, "marshal schema")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, errors.Wrap(err, "add schema")
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, errors.Wrap(err, "compile schema")
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks a decoded document. Numbers must be float64 or json.Number.
func (v *Validator) Validate(doc any) error {
	if err := v.compiled.Validate(doc); err != nil {
		return errors.Wrap(err, "json does not match schema")
	}
	return nil
}

// ValidateJSON decodes data with UseNumber and validates it.
func (v *Validator) ValidateJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return errors.Wrap(err, "unmarshal data")
	}
	return v.Validate(doc)
}
