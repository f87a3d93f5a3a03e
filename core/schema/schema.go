// Package schema validates inbound JSON payloads against declarative
// JSON-schema documents before a request reaches any business logic.
//
// Validation never fails fast: all violated constraints of a document are
// collected and reported together, joined into one human readable message.
package schema

import (
	"embed"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/xeipuuv/gojsonschema"
)

// Validator is a utility to validate JSON objects against a given schema
type Validator struct {
	schemaValidators map[string]*gojsonschema.Schema
}

// NewValidatorFromFS creates a new Validator using schemas from schemaFS. Json files
// from / will be used as toplevel schemas, while json files in /refs/ will be used
// as references
func NewValidatorFromFS(schemaFS embed.FS) (*Validator, error) {

	readDir := func(dir string) ([]string, error) {
		var strs []string
		files, err := schemaFS.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("cannot read dir %w", err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			fullPath := f.Name()
			if dir != "." {
				fullPath = dir + "/" + f.Name()
			}
			str, err := schemaFS.ReadFile(fullPath)
			if err != nil {
				return nil, fmt.Errorf("cannot read file '%s' %w", f.Name(), err)
			}
			strs = append(strs, string(str))
		}
		return strs, nil
	}

	schemasString, err := readDir(".")
	if err != nil {
		return nil, err
	}

	refsString, err := readDir("refs")
	if err != nil {
		return nil, err
	}

	return NewValidator(schemasString, refsString)
}

// MustNewValidatorFromFS is like NewValidatorFromFS, but panics on error.
func MustNewValidatorFromFS(schemaFS embed.FS) *Validator {
	v, err := NewValidatorFromFS(schemaFS)
	if err != nil {
		panic(err)
	}
	return v
}

// NewValidator creates a new Validator using schemas for the top level JSON schemas and refs
// for refs that may be referenced in the top level schemas. Top level schemas cannot reference
// each other. If a reference is mentioned, it can only be in the list of refs
func NewValidator(schemas []string, refs []string) (*Validator, error) {
	type schema struct {
		ID string `json:"$id"`
	}
	validator := Validator{schemaValidators: make(map[string]*gojsonschema.Schema)}
	for _, str := range schemas {
		s := schema{}
		err := json.Unmarshal([]byte(str), &s)
		if err != nil {
			return nil, fmt.Errorf("parse error '%v' in schema: '%s'", err, str)
		}
		if s.ID == "" {
			return nil, fmt.Errorf("schema does not contain $id: '%s'", str)
		}
		sl := gojsonschema.NewSchemaLoader()

		for _, ref := range refs {
			loader := gojsonschema.NewStringLoader(ref)
			err := sl.AddSchemas(loader)
			if err != nil {
				return nil, fmt.Errorf("cannot add ref %s %s", ref, err)
			}
		}
		compiled, err := sl.Compile(gojsonschema.NewStringLoader(str))
		if err != nil {
			return nil, fmt.Errorf("cannot compile schema %s %s", s.ID, err)
		}
		validator.schemaValidators[s.ID] = compiled
	}

	return &validator, nil
}

// HasSchema returns true if schemaID is known
func (v *Validator) HasSchema(schemaID string) bool {
	_, ok := v.schemaValidators[schemaID]
	return ok
}

// Validate validates the given json document against schemaID and returns the
// list of violated constraints, one human readable string each. A nil list
// means the document is valid. The returned error flags infrastructure
// problems only, such as an unknown schemaID or a document that is not JSON.
func (v *Validator) Validate(document []byte, schemaID string) ([]string, error) {

	compiled, ok := v.schemaValidators[schemaID]
	if !ok {
		return nil, fmt.Errorf("there is no schema %s", schemaID)
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("cannot validate with schema %s %s", schemaID, err)
	}

	if result.Valid() {
		return nil, nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, violationString(e))
	}
	return violations, nil
}

// ViolationMessage joins all violations into the single public message of a
// validation failure.
func ViolationMessage(violations []string) string {
	return strings.Join(violations, " and ")
}

func violationString(e gojsonschema.ResultError) string {
	field := e.Field()
	if field == gojsonschema.STRING_CONTEXT_ROOT {
		// required-property errors name the field in the description already
		return e.Description()
	}
	return field + " " + e.Description()
}
