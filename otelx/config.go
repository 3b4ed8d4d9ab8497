// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"bytes"
	_ "embed"
	"io"
)

type OTLPSampling struct {
	SamplingRatio float64 `json:"sampling_ratio" koanf:"sampling_ratio"`
}

type OTLPConfig struct {
	// Protocol is either "grpc" or "http".
	Protocol  string       `json:"protocol" koanf:"protocol"`
	ServerURL string       `json:"server_url" koanf:"server_url"`
	Insecure  bool         `json:"insecure" koanf:"insecure"`
	Sampling  OTLPSampling `json:"sampling" koanf:"sampling"`
}

type StdoutConfig struct {
	Pretty bool `json:"pretty" koanf:"pretty"`
}

type ProvidersConfig struct {
	OTLP   OTLPConfig   `json:"otlp" koanf:"otlp"`
	Stdout StdoutConfig `json:"stdout" koanf:"stdout"`
}

type Config struct {
	ServiceName string          `json:"service_name" koanf:"service_name"`
	Provider    string          `json:"provider" koanf:"provider"`
	Providers   ProvidersConfig `json:"providers" koanf:"providers"`
}

const (
	ProviderNone   = ""
	ProviderStdout = "stdout"
	ProviderOTLP   = "otel"
)

//go:embed config.schema.json
var ConfigSchema string

const ConfigSchemaID = "rentapp://tracing-config"

// AddConfigSchema adds the tracing schema to the compiler.
func AddConfigSchema(c interface {
	AddResource(url string, r io.Reader) error
},
) error {
	return c.AddResource(ConfigSchemaID, bytes.NewBufferString(ConfigSchema))
}
