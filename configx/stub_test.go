package configx

import (
	"bytes"
	"io"
)

const testSchema = `{
  "$id": "rentapp://test-config",
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "origin": { "type": "string", "minLength": 1, "default": "http://localhost" },
    "toggle": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "atomic": { "type": "boolean", "default": false }
      }
    },
    "retries": { "type": "integer", "minimum": 0, "default": 3 },
    "ratio": { "type": "number", "default": 0.5 },
    "timeout": { "type": "string", "default": "10s" },
    "max_size": { "type": "string", "default": "5MB" },
    "dir": { "type": "string", "default": "~/.rentapp" },
    "brokers": { "type": "array", "items": { "type": "string" }, "default": ["localhost:9092"] },
    "storage": { "$ref": "rentapp://test-storage#" }
  }
}`

const testStorageSchema = `{
  "$id": "rentapp://test-storage",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "provider": { "type": "string", "enum": ["memory", "file"], "default": "memory" },
    "fallback_to_unavailable": { "type": "boolean", "default": true }
  }
}`

func addTestStorageSchema(c interface {
	AddResource(url string, r io.Reader) error
},
) error {
	return c.AddResource("rentapp://test-storage", bytes.NewBufferString(testStorageSchema))
}
