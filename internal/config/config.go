// Package config loads the configuration shared by flagd and flagctl.
package config

import (
	"context"
	_ "embed"
	"time"

	"github.com/rentapp/x/configx"
	"github.com/rentapp/x/kvx/autosetup"
	"github.com/rentapp/x/otelx"
	"github.com/rentapp/x/pubsubx"
	"github.com/spf13/pflag"
)

//go:embed config.schema.json
var Schema []byte

// EnvPrefix prefixes the environment variables read by the binaries, e.g.
// FLAGD_STORAGE__PROVIDER sets storage.provider.
const EnvPrefix = "FLAGD_"

// ConfigFlag is the repeatable command line flag naming config files.
const ConfigFlag = "config"

type Config struct {
	Origin  string            `koanf:"origin"`
	Storage autosetup.Config  `koanf:"storage"`
	Events  pubsubx.Config    `koanf:"events"`
	Tracing otelx.Config      `koanf:"tracing"`
	Metrics otelx.MeterConfig `koanf:"metrics"`
	Toggle  ToggleConfig      `koanf:"toggle"`
	Serve   ServeConfig       `koanf:"serve"`
	Log     LogConfig         `koanf:"log"`
}

type ToggleConfig struct {
	Atomic bool `koanf:"atomic"`
}

type ServeConfig struct {
	HTTP            AddressConfig `koanf:"http"`
	GRPC            AddressConfig `koanf:"grpc"`
	CORS            CORSConfig    `koanf:"cors"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type AddressConfig struct {
	Address string `koanf:"address"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RegisterFlags adds the flags understood by Load to fs. Any flag named after
// a configuration key, e.g. --origin, overrides that key.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringSlice(ConfigFlag, nil, "Config files to load (yaml, json or toml), later files win.")
	fs.String("origin", "", "Application origin the flag values are scoped to.")
	fs.String("storage.provider", "", "Storage backend: memory, file, sqlite, arango, elastic, keyring or none.")
	fs.String("log.level", "", "Log level: debug, info, warn or error.")
}

// Load merges schema defaults, the config files named by --config,
// FLAGD_ environment variables and the flags of fs.
func Load(ctx context.Context, fs *pflag.FlagSet, modifiers ...configx.OptionModifier) (*Config, *configx.Provider, error) {
	opts := []configx.OptionModifier{
		configx.WithSchemaResources(autosetup.AddConfigSchema, pubsubx.AddConfigSchema, otelx.AddConfigSchema, otelx.AddMeterConfigSchema),
		configx.WithEnvPrefix(EnvPrefix),
	}
	if fs != nil {
		files, err := fs.GetStringSlice(ConfigFlag)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, configx.WithConfigFiles(files...), configx.WithFlags(fs))
	}
	opts = append(opts, configx.ConfigOptionsFromContext(ctx)...)
	opts = append(opts, modifiers...)

	p, err := configx.New(ctx, Schema, opts...)
	if err != nil {
		return nil, nil, err
	}

	var c Config
	if err := p.Unmarshal("", &c); err != nil {
		return nil, nil, err
	}
	return &c, p, nil
}
