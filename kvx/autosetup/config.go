package autosetup

import (
	"bytes"
	_ "embed"
	"io"
	"time"
)

const (
	ProviderMemory  = "memory"
	ProviderFile    = "file"
	ProviderSQLite  = "sqlite"
	ProviderArango  = "arango"
	ProviderElastic = "elastic"
	ProviderKeyring = "keyring"
	ProviderNone    = "none"
)

type Config struct {
	Provider string `json:"provider" koanf:"provider"`
	// FallbackToUnavailable turns a backend that cannot be set up into
	// kvx.Unavailable instead of an error.
	FallbackToUnavailable bool          `json:"fallback_to_unavailable" koanf:"fallback_to_unavailable"`
	ConnectTimeout        time.Duration `json:"connect_timeout" koanf:"connect_timeout"`

	File    FileConfig    `json:"file" koanf:"file"`
	SQLite  SQLiteConfig  `json:"sqlite" koanf:"sqlite"`
	Arango  ArangoConfig  `json:"arango" koanf:"arango"`
	Elastic ElasticConfig `json:"elastic" koanf:"elastic"`
	Keyring KeyringConfig `json:"keyring" koanf:"keyring"`
}

type FileConfig struct {
	Dir string `json:"dir" koanf:"dir"`
	// MaxSize is a human readable size such as "5MB".
	MaxSize string `json:"max_size" koanf:"max_size"`
}

type SQLiteConfig struct {
	DSN string `json:"dsn" koanf:"dsn"`
}

type ArangoConfig struct {
	Endpoints  []string `json:"endpoints" koanf:"endpoints"`
	Database   string   `json:"database" koanf:"database"`
	Collection string   `json:"collection" koanf:"collection"`
	Username   string   `json:"username" koanf:"username"`
	Password   string   `json:"password" koanf:"password"`
}

type ElasticConfig struct {
	Addresses []string `json:"addresses" koanf:"addresses"`
	Index     string   `json:"index" koanf:"index"`
	Username  string   `json:"username" koanf:"username"`
	Password  string   `json:"password" koanf:"password"`
}

type KeyringConfig struct {
	// Backends restricts the keyring backends, e.g. "file" or "keychain".
	Backends []string `json:"backends" koanf:"backends"`
	Dir      string   `json:"dir" koanf:"dir"`
	Password string   `json:"password" koanf:"password"`
}

//go:embed config.schema.json
var ConfigSchema string

const ConfigSchemaID = "rentapp://storage-config"

// AddConfigSchema adds the storage schema to the compiler.
func AddConfigSchema(c interface {
	AddResource(url string, r io.Reader) error
},
) error {
	return c.AddResource(ConfigSchemaID, bytes.NewBufferString(ConfigSchema))
}
