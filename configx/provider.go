// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

// Package configx loads configuration documents validated by a JSON schema.
// Sources are merged in this order, later ones winning: schema defaults,
// base values, config files, environment variables, command line flags,
// user providers and forced values.
package configx

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/knadh/koanf"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/mitchellh/go-homedir"
	"github.com/ory/jsonschema/v3"
	"github.com/pkg/errors"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/loggerx"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"
)

const Delimiter = "."

type Provider struct {
	l sync.RWMutex
	k *koanf.Koanf

	schema       []byte
	schemaAdders []SchemaAdder
	keys         map[string]schemaKey

	files             []string
	flags             *pflag.FlagSet
	envPrefix         string
	forcedValues      []tuple
	baseValues        []tuple
	userProviders     []koanf.Provider
	skipValidation    bool
	disableEnvLoading bool
	onValidationError func(raw []byte, err error)

	logger *loggerx.Logger
}

// New loads the configuration described by schema.
func New(ctx context.Context, schema []byte, modifiers ...OptionModifier) (*Provider, error) {
	p := &Provider{
		schema:            schema,
		onValidationError: func([]byte, error) {},
		logger:            loggerx.NewDiscard(),
	}
	for _, m := range modifiers {
		m(p)
	}

	id, rec, err := newCompiler(schema, p.schemaAdders)
	if err != nil {
		return nil, err
	}
	compiled, err := rec.c.Compile(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	p.keys = listKeys(rec.resources, id)

	k, err := p.load()
	if err != nil {
		return nil, err
	}

	if !p.skipValidation {
		if err := p.validate(k, compiled); err != nil {
			return nil, err
		}
	}

	p.l.Lock()
	p.k = k
	p.l.Unlock()

	p.logger.Debug(ctx, "configuration loaded", attribute.StringSlice("files", p.files))
	return p, nil
}

func (p *Provider) load() (*koanf.Koanf, error) {
	k := koanf.New(Delimiter)

	if err := k.Load(confmap.Provider(schemaDefaults(p.keys), Delimiter), nil); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := k.Load(confmap.Provider(tuplesToMap(p.baseValues), Delimiter), nil); err != nil {
		return nil, errors.WithStack(err)
	}

	for _, f := range p.files {
		path, err := homedir.Expand(f)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, errors.Wrapf(err, "could not load config file %s", path)
		}
	}

	if !p.disableEnvLoading && p.envPrefix != "" {
		if err := k.Load(env.ProviderWithValue(p.envPrefix, Delimiter, p.envValue), nil); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if p.flags != nil {
		if err := k.Load(posflag.Provider(p.knownFlags(), Delimiter, k), nil); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	for _, up := range p.userProviders {
		if err := k.Load(up, nil); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := k.Load(confmap.Provider(tuplesToMap(p.forcedValues), Delimiter), nil); err != nil {
		return nil, errors.WithStack(err)
	}

	return k, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown config file extension %q, expected one of .yaml, .yml, .json or .toml", filepath.Ext(path))
	}
}

// envValue maps FLAGD_STORAGE__FILE__DIR to storage.file.dir and coerces the
// value to the type declared by the schema. Unknown keys are skipped.
func (p *Provider) envValue(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, p.envPrefix), "__", Delimiter))
	sk, ok := p.keys[key]
	if !ok {
		return "", nil
	}
	return key, coerce(sk.Type, value)
}

func coerce(typ, value string) interface{} {
	var (
		v   interface{}
		err error
	)
	switch typ {
	case "boolean":
		v, err = cast.ToBoolE(value)
	case "integer":
		v, err = cast.ToInt64E(value)
	case "number":
		v, err = cast.ToFloat64E(value)
	case "array":
		parts := strings.Split(value, ",")
		out := make([]interface{}, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return value
	}
	if err != nil {
		// Keep the raw value so that validation reports it.
		return value
	}
	return v
}

// knownFlags returns the flags whose name is a configuration key.
func (p *Provider) knownFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("configx", pflag.ContinueOnError)
	p.flags.VisitAll(func(f *pflag.Flag) {
		if _, ok := p.keys[f.Name]; ok {
			fs.AddFlag(f)
		}
	})
	return fs
}

func (p *Provider) validate(k *koanf.Koanf, schema *jsonschema.Schema) error {
	raw, err := json.Marshal(k.Raw())
	if err != nil {
		return errors.WithStack(err)
	}
	if err := schema.Validate(bytes.NewReader(raw)); err != nil {
		p.onValidationError(raw, err)
		return err
	}
	return nil
}

func tuplesToMap(tuples []tuple) map[string]interface{} {
	m := make(map[string]interface{}, len(tuples))
	for _, t := range tuples {
		m[t.Key] = t.Value
	}
	return m
}

func (p *Provider) koanf() *koanf.Koanf {
	p.l.RLock()
	defer p.l.RUnlock()
	return p.k
}

func (p *Provider) Exists(key string) bool {
	return p.koanf().Exists(key)
}

func (p *Provider) Get(key string) interface{} {
	return p.koanf().Get(key)
}

func (p *Provider) String(key string) string {
	return cast.ToString(p.Get(key))
}

func (p *Provider) StringF(key string, fallback string) string {
	if !p.Exists(key) {
		return fallback
	}
	return p.String(key)
}

func (p *Provider) Bool(key string) bool {
	return cast.ToBool(p.Get(key))
}

func (p *Provider) Int(key string) int {
	return cast.ToInt(p.Get(key))
}

func (p *Provider) Float64(key string) float64 {
	return cast.ToFloat64(p.Get(key))
}

func (p *Provider) Strings(key string) []string {
	return cast.ToStringSlice(p.Get(key))
}

func (p *Provider) DurationF(key string, fallback time.Duration) time.Duration {
	d, err := cast.ToDurationE(p.Get(key))
	if err != nil || !p.Exists(key) {
		return fallback
	}
	return d
}

// ByteSizeF parses sizes written like "5MB".
func (p *Provider) ByteSizeF(key string, fallback bytesize.ByteSize) bytesize.ByteSize {
	if !p.Exists(key) {
		return fallback
	}
	switch v := p.Get(key).(type) {
	case string:
		b, err := bytesize.Parse(v)
		if err != nil {
			return fallback
		}
		return b
	default:
		n, err := cast.ToFloat64E(v)
		if err != nil {
			return fallback
		}
		return bytesize.New(n)
	}
}

// PathF returns key with a leading ~ expanded to the home directory.
func (p *Provider) PathF(key string, fallback string) string {
	v := p.StringF(key, fallback)
	expanded, err := homedir.Expand(v)
	if err != nil {
		return v
	}
	return expanded
}

// Unmarshal decodes the document at path into out using koanf struct tags.
func (p *Provider) Unmarshal(path string, out interface{}) error {
	return errors.WithStack(p.koanf().Unmarshal(path, out))
}

// All returns the merged configuration as a nested map.
func (p *Provider) All() map[string]interface{} {
	return p.koanf().Raw()
}
