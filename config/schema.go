package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/agentwire/errors"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON Schema that config files are validated against
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

// validateSchema checks a decoded config document against the embedded schema
func validateSchema(raw map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return errors.WrapFatal(err, "Config", "validateSchema", "run schema validation")
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; ")),
			"Config", "validateSchema", "validate against schema")
	}
	return nil
}
