package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/raceant/scull/errors"
)

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Schema returns the JSON schema configuration documents are checked against.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

// ValidateDocument checks a decoded JSON or YAML document against the schema.
func ValidateDocument(doc map[string]any) error {
	schema, err := compiledSchema()
	if err != nil {
		return errors.WrapFatal(err, "Config", "ValidateDocument", "compile schema")
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.WrapInvalid(err, "Config", "ValidateDocument", "validate document")
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(msgs, "; ")),
		"Config", "ValidateDocument", "check schema")
}
