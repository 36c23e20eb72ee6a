package tool

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateArgs checks args against the tool's declared JSON Schema before
// the broker dispatches the call. An empty schema always passes.
func ValidateArgs(spec Spec, args map[string]interface{}) error {
	if len(spec.Schema) == 0 {
		return nil
	}

	c := jsonschema.NewCompiler()
	resourceName := "tool:" + spec.Name
	if err := c.AddResource(resourceName, spec.Schema); err != nil {
		return fmt.Errorf("tool: add schema resource for %q: %w", spec.Name, err)
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		return fmt.Errorf("tool: compile schema for %q: %w", spec.Name, err)
	}

	// jsonschema validates against plain Go values produced by
	// encoding/json unmarshaling; map[string]interface{} args already
	// satisfy that shape.
	asAny := make(map[string]interface{}, len(args))
	for k, v := range args {
		asAny[k] = v
	}
	if err := schema.Validate(asAny); err != nil {
		return fmt.Errorf("tool: arguments for %q failed schema validation: %w", spec.Name, err)
	}
	return nil
}
