package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Names of the embedded schemas.
const (
	SchemaRecurringRule = "recurring_rule.json"
	SchemaTaskCreate    = "task_create.json"
)

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

// Validate checks body against one of the embedded schemas.
func Validate(name string, body []byte) error {
	compileOnce.Do(compileEmbedded)
	if compileErr != nil {
		return compileErr
	}
	sch, ok := compiled[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	return validate(sch, body)
}

func compileEmbedded() {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		compileErr = fmt.Errorf("failed to list embedded schemas: %w", err)
		return
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	for _, e := range entries {
		raw, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			compileErr = fmt.Errorf("failed to read schema %s: %w", e.Name(), err)
			return
		}
		if err := compiler.AddResource(e.Name(), bytes.NewReader(raw)); err != nil {
			compileErr = fmt.Errorf("failed to add schema resource %s: %w", e.Name(), err)
			return
		}
	}
	compiled = make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		sch, err := compiler.Compile(e.Name())
		if err != nil {
			compileErr = fmt.Errorf("failed to compile JSON schema %s: %w", e.Name(), err)
			return
		}
		compiled[e.Name()] = sch
	}
}

func validate(sch *jsonschema.Schema, body []byte) error {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON data: %w", err)
	}
	if err := sch.Validate(data); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("JSON data failed validation against schema: %v", validationErr)
		}
		return fmt.Errorf("JSON data failed validation (unexpected error type): %w", err)
	}
	return nil
}
