package schema

import (
	_ "embed"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

type FieldType string

const (
	String  FieldType = "string"
	Number  FieldType = "number"
	Boolean FieldType = "boolean"
)

// Field describes one column of the record.
type Field struct {
	Name        string    `yaml:"name"`
	Type        FieldType `yaml:"type"`
	Required    bool      `yaml:"required"`
	Description string    `yaml:"description"`
	Enum        []string  `yaml:"enum,omitempty"`
}

// Normalizer maps a raw string value to its canonical form. ok=false leaves the value
// to the enum match.
type Normalizer func(raw string) (canonical string, ok bool)

// Schema is the record contract: declared field order, types, optionality and enums.
// It is read-only after construction and safe to share between goroutines.
type Schema struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`

	index       map[string]int
	normalizers map[string]Normalizer
}

//go:embed invoice.yaml
var invoiceYAML []byte

// Default returns the built-in invoice / credit note schema.
func Default() *Schema {
	s, err := Parse(invoiceYAML)
	if err != nil {
		panic("schema: embedded invoice.yaml: " + err.Error())
	}
	return s
}

// LoadFile reads a schema description from a YAML file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.InvalidInputError("read schema %s: %v", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "schema %s", path)
	}
	return s, nil
}

// Parse decodes and checks a YAML schema description.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, common.InvalidInputError("decode schema: %v", err)
	}
	if len(s.Fields) == 0 {
		return nil, common.InvalidInputError("schema %q declares no fields", s.Name)
	}

	s.index = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, common.InvalidInputError("field %d has no name", i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, common.InvalidInputError("duplicate field %q", f.Name)
		}
		switch f.Type {
		case String, Number, Boolean:
		case "":
			f.Type = String
		default:
			return nil, common.InvalidInputError("field %q: unknown type %q", f.Name, f.Type)
		}
		if len(f.Enum) > 0 && f.Type != String {
			return nil, common.InvalidInputError("field %q: enum is only allowed on string fields", f.Name)
		}
		s.Fields[i] = f
		s.index[f.Name] = i
	}

	if id := s.Fields[0]; !id.Required || id.Type != String {
		return nil, common.InvalidInputError("first field %q is the identifier and must be a required string", id.Name)
	}

	s.normalizers = map[string]Normalizer{}
	if i, ok := s.index["document_type"]; ok {
		known := constants.DocumentTypes()
		f := &s.Fields[i]
		if len(f.Enum) == 0 {
			f.Enum = known
		}
		if unknown := lo.Without(f.Enum, known...); len(unknown) > 0 {
			return nil, common.InvalidInputError("document_type: unknown values %v", unknown)
		}
		s.normalizers["document_type"] = func(raw string) (string, bool) {
			dt, ok := constants.CanonicalDocumentType(raw)
			return string(dt), ok
		}
	}
	return &s, nil
}

// ID is the identifier field, always the first column of the output.
func (s *Schema) ID() string {
	return s.Fields[0].Name
}

// Header is the declared field order.
func (s *Schema) Header() []string {
	return lo.Map(s.Fields, func(f Field, _ int) string { return f.Name })
}

// Required lists the mandatory fields in declared order.
func (s *Schema) Required() []string {
	return lo.FilterMap(s.Fields, func(f Field, _ int) (string, bool) { return f.Name, f.Required })
}

func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (f Field) property(withDescription bool) map[string]any {
	p := map[string]any{"type": string(f.Type)}
	if len(f.Enum) > 0 {
		p["enum"] = f.Enum
	}
	if withDescription && f.Description != "" {
		p["description"] = f.Description
	}
	return p
}

// JSONSchema returns the draft 2020-12 subset used for validation.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = f.property(true)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             s.Required(),
	}
}
