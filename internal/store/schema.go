package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiled schemas validate the on-disk JSON shape before it is decoded
// into a Go struct (spec §6). Compilation happens once, lazily, mirroring
// the pack's compileSchema pattern for tool-parameter schemas.

const itemSchemaJSON = `{
  "type": "object",
  "required": ["schema_version", "id", "title", "state", "overview", "created_at", "updated_at"],
  "properties": {
    "schema_version": {"type": "integer"},
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string", "minLength": 1},
    "state": {"enum": ["raw", "researched", "planned", "implementing", "critique", "in_pr", "done"]},
    "overview": {"type": "string"},
    "created_at": {"type": "string"},
    "updated_at": {"type": "string"}
  }
}`

const prdSchemaJSON = `{
  "type": "object",
  "required": ["schema_version", "id", "branch_name", "user_stories"],
  "properties": {
    "schema_version": {"type": "integer"},
    "id": {"type": "string", "minLength": 1},
    "branch_name": {"type": "string", "minLength": 1},
    "user_stories": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "acceptance_criteria", "priority", "status"],
        "properties": {
          "id": {"type": "string", "pattern": "^US-([0-9]+|[0-9]{3}-[0-9]+)$"},
          "title": {"type": "string"},
          "acceptance_criteria": {"type": "array", "items": {"type": "string"}},
          "priority": {"type": "integer", "minimum": 1, "maximum": 4},
          "status": {"enum": ["pending", "done"]}
        }
      }
    }
  }
}`

const indexSchemaJSON = `{
  "type": "object",
  "required": ["schema_version", "generated_at", "items"],
  "properties": {
    "schema_version": {"type": "integer"},
    "generated_at": {"type": "string"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "state", "title"],
        "properties": {
          "id": {"type": "string"},
          "state": {"enum": ["raw", "researched", "planned", "implementing", "critique", "in_pr", "done"]},
          "title": {"type": "string"}
        }
      }
    }
  }
}`

const batchProgressSchemaJSON = `{
  "type": "object",
  "required": ["session_id", "pid", "started_at", "updated_at", "parallel"],
  "properties": {
    "session_id": {"type": "string"},
    "pid": {"type": "integer"},
    "started_at": {"type": "string"},
    "updated_at": {"type": "string"},
    "parallel": {"type": "integer"}
  }
}`

var (
	schemasOnce sync.Once
	itemSchema, prdSchema, indexSchema, batchProgressSchema *jsonschema.Schema
	schemaErr error
)

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	return c.Compile(name)
}

func schemas() error {
	schemasOnce.Do(func() {
		var err error
		if itemSchema, err = compileSchema("item.json", itemSchemaJSON); err != nil {
			schemaErr = err
			return
		}
		if prdSchema, err = compileSchema("prd.json", prdSchemaJSON); err != nil {
			schemaErr = err
			return
		}
		if indexSchema, err = compileSchema("index.json", indexSchemaJSON); err != nil {
			schemaErr = err
			return
		}
		if batchProgressSchema, err = compileSchema("batch-progress.json", batchProgressSchemaJSON); err != nil {
			schemaErr = err
			return
		}
	})
	return schemaErr
}

func validateAgainst(schema *jsonschema.Schema, v any) error {
	if err := schemas(); err != nil {
		return fmt.Errorf("compile schemas: %w", err)
	}
	return schema.Validate(v)
}
