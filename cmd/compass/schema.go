package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/lumen-ed/compass/pkg/config"
)

// SchemaCmd emits a JSON Schema for the service configuration, for editor
// completion and deploy-time validation of district config files.
type SchemaCmd struct {
	Output  string `short:"o" placeholder:"PATH" help:"Write the schema to a file instead of stdout."`
	Compact bool   `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	out := os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.Output, err)
		}
		defer f.Close()
		out = f
	}

	encoder := json.NewEncoder(out)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(configSchema()); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}

// configSchema reflects the config structs into a draft-07 document with
// inlined definitions, which editor integrations handle more reliably than
// $ref chains.
func configSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://github.com/lumen-ed/compass/schemas/config.json"
	schema.Title = "Compass Configuration Schema"
	schema.Description = "Configuration schema for the Compass inference service"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []any{
		map[string]any{
			"server": map[string]any{
				"host": "0.0.0.0",
				"port": 8080,
			},
			"feature_store": map[string]any{
				"url": "postgres://compass:${DB_PASSWORD}@db:5432/features",
			},
			"llm": map[string]any{
				"provider": "anthropic",
				"model":    "claude-sonnet-4-20250514",
			},
		},
	}
	return schema
}
