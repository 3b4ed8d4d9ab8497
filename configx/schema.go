// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package configx

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/ory/jsonschema/v3"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// SchemaAdder registers a schema resource, e.g. autosetup.AddConfigSchema.
type SchemaAdder func(c interface {
	AddResource(url string, r io.Reader) error
}) error

// resourceRecorder keeps a copy of every resource added to the compiler so
// that defaults and types can be read across $ref.
type resourceRecorder struct {
	c         *jsonschema.Compiler
	resources map[string][]byte
}

func (r *resourceRecorder) AddResource(url string, rd io.Reader) error {
	raw, err := io.ReadAll(rd)
	if err != nil {
		return errors.WithStack(err)
	}
	r.resources[strings.TrimSuffix(url, "#")] = raw
	return r.c.AddResource(url, bytes.NewReader(raw))
}

func newCompiler(schema []byte, adders []SchemaAdder) (string, *resourceRecorder, error) {
	id := gjson.GetBytes(schema, "$id").String()
	if id == "" {
		id = fmt.Sprintf("%s.json", uuid.Must(uuid.NewRandom()).String())
	}

	rec := &resourceRecorder{c: jsonschema.NewCompiler(), resources: map[string][]byte{}}
	if err := rec.AddResource(id, bytes.NewReader(schema)); err != nil {
		return "", nil, err
	}

	// DO NOT REMOVE THIS
	rec.c.ExtractAnnotations = true

	for _, add := range adders {
		if err := add(rec); err != nil {
			return "", nil, err
		}
	}

	return id, rec, nil
}

// schemaKey describes one leaf of the configuration document.
type schemaKey struct {
	Type    string
	Default gjson.Result
}

// listKeys walks the object properties of the schema, following $ref into
// the registered resources, and returns every leaf key with its type.
func listKeys(resources map[string][]byte, id string) map[string]schemaKey {
	keys := map[string]schemaKey{}
	walkSchema(resources, gjson.ParseBytes(resources[id]), "", keys, 0)
	return keys
}

const maxSchemaDepth = 32

func walkSchema(resources map[string][]byte, node gjson.Result, prefix string, keys map[string]schemaKey, depth int) {
	if depth > maxSchemaDepth {
		return
	}
	if ref := node.Get("$ref"); ref.Exists() {
		if raw, ok := resources[strings.TrimSuffix(ref.String(), "#")]; ok {
			walkSchema(resources, gjson.ParseBytes(raw), prefix, keys, depth+1)
		}
		return
	}

	props := node.Get("properties")
	if node.Get("type").String() == "object" && props.IsObject() {
		props.ForEach(func(k, v gjson.Result) bool {
			path := k.String()
			if prefix != "" {
				path = prefix + "." + path
			}
			walkSchema(resources, v, path, keys, depth+1)
			return true
		})
		return
	}

	if prefix != "" {
		keys[prefix] = schemaKey{Type: node.Get("type").String(), Default: node.Get("default")}
	}
}

// schemaDefaults returns the flattened defaults of keys.
func schemaDefaults(keys map[string]schemaKey) map[string]interface{} {
	defaults := map[string]interface{}{}
	for k, v := range keys {
		if v.Default.Exists() {
			defaults[k] = v.Default.Value()
		}
	}
	return defaults
}
