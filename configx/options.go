// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package configx

import (
	"context"
	"io"
	"os"

	"github.com/knadh/koanf"
	"github.com/rentapp/x/loggerx"
	"github.com/spf13/pflag"
)

type (
	OptionModifier func(p *Provider)

	tuple struct {
		Key   string
		Value interface{}
	}
)

func WithConfigFiles(files ...string) OptionModifier {
	return func(p *Provider) {
		p.files = append(p.files, files...)
	}
}

// WithFlags loads the changed flags whose name is a configuration key.
func WithFlags(flags *pflag.FlagSet) OptionModifier {
	return func(p *Provider) {
		p.flags = flags
	}
}

func WithLogger(l *loggerx.Logger) OptionModifier {
	return func(p *Provider) {
		p.logger = l
	}
}

// WithEnvPrefix sets the prefix of the environment variables to load, e.g.
// "FLAGD_" loads FLAGD_STORAGE__PROVIDER as storage.provider.
func WithEnvPrefix(prefix string) OptionModifier {
	return func(p *Provider) {
		p.envPrefix = prefix
	}
}

// WithSchemaResources registers the schemas referenced by $ref.
func WithSchemaResources(adders ...SchemaAdder) OptionModifier {
	return func(p *Provider) {
		p.schemaAdders = append(p.schemaAdders, adders...)
	}
}

func SkipValidation() OptionModifier {
	return func(p *Provider) {
		p.skipValidation = true
	}
}

func DisableEnvLoading() OptionModifier {
	return func(p *Provider) {
		p.disableEnvLoading = true
	}
}

// WithValue forces key to value, overriding every other source.
func WithValue(key string, value interface{}) OptionModifier {
	return func(p *Provider) {
		p.forcedValues = append(p.forcedValues, tuple{Key: key, Value: value})
	}
}

func WithValues(values map[string]interface{}) OptionModifier {
	return func(p *Provider) {
		for key, value := range values {
			p.forcedValues = append(p.forcedValues, tuple{Key: key, Value: value})
		}
	}
}

// WithBaseValues sets values that only override the schema defaults.
func WithBaseValues(values map[string]interface{}) OptionModifier {
	return func(p *Provider) {
		for key, value := range values {
			p.baseValues = append(p.baseValues, tuple{Key: key, Value: value})
		}
	}
}

func WithUserProviders(providers ...koanf.Provider) OptionModifier {
	return func(p *Provider) {
		p.userProviders = providers
	}
}

func WithStderrValidationReporter() OptionModifier {
	return WithStandardValidationReporter(os.Stderr)
}

func WithStandardValidationReporter(w io.Writer) OptionModifier {
	return func(p *Provider) {
		p.onValidationError = func(raw []byte, err error) {
			printHumanReadableValidationErrors(w, raw, err)
		}
	}
}

type contextKey int

const configOptionsKey contextKey = iota + 1

// ContextWithConfigOptions stores options applied by WithContext.
func ContextWithConfigOptions(ctx context.Context, opts ...OptionModifier) context.Context {
	return context.WithValue(ctx, configOptionsKey, append(ConfigOptionsFromContext(ctx), opts...))
}

func ConfigOptionsFromContext(ctx context.Context) []OptionModifier {
	opts, _ := ctx.Value(configOptionsKey).([]OptionModifier)
	return opts
}

// WithContext applies the options stored in ctx, letting tests inject
// configuration values into commands.
func WithContext(ctx context.Context) OptionModifier {
	return func(p *Provider) {
		for _, o := range ConfigOptionsFromContext(ctx) {
			o(p)
		}
	}
}
