package buffer

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// archiveSchemaJSON describes the archive file. Entries live under
// "entries" or, in files written by the optimizer, under "archive".
const archiveSchemaJSON = `{
  "type": "object",
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "resolution": {"type": "integer", "minimum": 1},
    "entries": {"type": "object", "additionalProperties": {"$ref": "#/$defs/entry"}},
    "archive": {"type": "object", "additionalProperties": {"$ref": "#/$defs/entry"}},
    "history": {"type": "array"}
  },
  "anyOf": [
    {"required": ["entries"]},
    {"required": ["archive"]}
  ],
  "$defs": {
    "entry": {
      "type": "object",
      "required": ["config"],
      "properties": {
        "config": {"type": "object"},
        "performance": {"type": "number"}
      }
    }
  }
}`

var (
	schemaOnce       sync.Once
	archiveSchema    *jsonschema.Resolved
	archiveSchemaErr error
)

func resolvedArchiveSchema() (*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		var s jsonschema.Schema
		if err := json.Unmarshal([]byte(archiveSchemaJSON), &s); err != nil {
			archiveSchemaErr = fmt.Errorf("parsing archive schema: %w", err)
			return
		}
		archiveSchema, archiveSchemaErr = s.Resolve(nil)
	})
	return archiveSchema, archiveSchemaErr
}

// validateArchive checks data against the archive schema.
func validateArchive(data []byte) error {
	rs, err := resolvedArchiveSchema()
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return err
	}
	return rs.Validate(instance)
}
