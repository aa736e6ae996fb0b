package tool

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/relaykit/agentcore/agenterr"
)

// ValidateArgs validates args against t's parametersSchema. A Tool whose
// ParametersSchema returns an empty map or nil is treated as unconstrained
// and always validates.
func ValidateArgs(t Tool, args map[string]any) error {
	schema := t.ParametersSchema()
	if len(schema) == 0 {
		return nil
	}
	compiled, err := compileSchema(t.Name(), schema)
	if err != nil {
		return agenterr.NewValidationError(fmt.Sprintf("tool %q has an invalid parameters schema", t.Name()), err)
	}
	if err := compiled.Validate(args); err != nil {
		return agenterr.NewValidationError(fmt.Sprintf("arguments for tool %q failed schema validation", t.Name()), err)
	}
	return nil
}

var (
	schemaCacheMu sync.Mutex
	schemaCache   = map[string]*jsonschema.Schema{}
)

// compileSchema compiles and caches a tool's parameters schema, keyed by
// tool name. Tool schemas are fixed at construction time, so compiling once
// per process is sufficient.
func compileSchema(toolName string, schema map[string]any) (*jsonschema.Schema, error) {
	schemaCacheMu.Lock()
	defer schemaCacheMu.Unlock()
	if cached, ok := schemaCache[toolName]; ok {
		return cached, nil
	}
	url := "mem://tool/" + toolName
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, schema); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	schemaCache[toolName] = compiled
	return compiled, nil
}
