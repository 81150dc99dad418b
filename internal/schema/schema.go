// Package schema validates parameter and config maps against declared
// JSON Schemas. Validation runs before any plugin code executes, so a
// connector's execute function may assume its input satisfies the schema.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// FieldError is a single violated constraint, addressed by field path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated field, not just the first.
type ValidationError struct {
	Subject string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s is invalid", e.Subject)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s is invalid: %s", e.Subject, strings.Join(parts, "; "))
}

// Schema is a compiled JSON Schema. A nil Schema accepts any document.
type Schema struct {
	compiled *gojsonschema.Schema
}

// Compile builds a reusable Schema from a JSON Schema document. An empty
// document compiles to a Schema that accepts anything.
func Compile(doc map[string]any) (*Schema, error) {
	if len(doc) == 0 {
		return &Schema{}, nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile is Compile for static schemas registered at startup.
func MustCompile(doc map[string]any) *Schema {
	s, err := Compile(doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks value against the schema and returns either nil or a
// *ValidationError naming every violated field. Subject names the thing
// being validated in error messages ("config", "params", ...).
func (s *Schema) Validate(subject string, value map[string]any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	if value == nil {
		value = map[string]any{}
	}
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("validate %s: %w", subject, err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{Subject: subject}
	for _, re := range result.Errors() {
		verr.Fields = append(verr.Fields, FieldError{
			Field:   normalizeField(re.Field()),
			Message: re.Description(),
		})
	}
	return verr
}

// Validate is the one-shot form for schemas that are not reused.
func Validate(subject string, doc map[string]any, value map[string]any) error {
	s, err := Compile(doc)
	if err != nil {
		return err
	}
	return s.Validate(subject, value)
}

func normalizeField(field string) string {
	field = strings.TrimSpace(field)
	if field == "" || field == "(root)" {
		return "."
	}
	return field
}
