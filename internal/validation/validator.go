package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

// ValidationError names the request field that failed validation.
// Field is empty when the body as a whole is unusable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// Payload is a request body that passed validation. String values are trimmed on access.
type Payload struct {
	values map[string]any
	raw    map[string]json.RawMessage
}

// String returns the trimmed string at name, or "" when absent.
func (p Payload) String(name string) string {
	s, _ := p.values[name].(string)
	return strings.TrimSpace(s)
}

// Raw returns the bytes of the value at name exactly as the client sent them, or nil when absent.
func (p Payload) Raw(name string) json.RawMessage {
	return p.raw[name]
}

// Validator checks request bodies against the compiled route schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every route schema. It fails only on a broken schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	// Use JSON Schema Draft 7 as default
	compiler.DefaultDraft(jsonschema.Draft7)

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(routeSchemas))}
	for name, schemaJSON := range routeSchemas {
		parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
		if err != nil {
			return nil, fmt.Errorf("parse %s schema: %w", name, err)
		}
		url := name + ".json"
		if err := compiler.AddResource(url, parsed); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

// Validate checks body against the named schema. It performs no I/O.
func (v *Validator) Validate(name string, body []byte) (Payload, error) {
	schema, ok := v.schemas[name]
	if !ok {
		return Payload{}, fmt.Errorf("no schema registered for %q", name)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return Payload{}, &ValidationError{Reason: "body is not valid JSON"}
	}
	if err := schema.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return Payload{}, toValidationError(ve)
		}
		return Payload{}, &ValidationError{Reason: err.Error()}
	}

	values, _ := inst.(map[string]any)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, &ValidationError{Reason: "body is not valid JSON"}
	}
	return Payload{values: values, raw: raw}, nil
}

// toValidationError reduces the library's error tree to the first offending field.
func toValidationError(ve *jsonschema.ValidationError) *ValidationError {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	field := strings.Join(leaf.InstanceLocation, ".")

	switch k := leaf.ErrorKind.(type) {
	case *kind.Required:
		if len(k.Missing) > 0 {
			field = joinField(field, k.Missing[0])
		}
		return &ValidationError{Field: field, Reason: "is required"}
	case *kind.Type:
		if field == "" {
			return &ValidationError{Reason: "body must be a JSON object"}
		}
		return &ValidationError{Field: field, Reason: "must be " + article(strings.Join(k.Want, " or "))}
	case *kind.Pattern:
		return &ValidationError{Field: field, Reason: "must not be blank"}
	default:
		return &ValidationError{Field: field, Reason: "is invalid"}
	}
}

func joinField(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func article(noun string) string {
	if noun != "" && strings.ContainsRune("aeiou", rune(noun[0])) {
		return "an " + noun
	}
	return "a " + noun
}
