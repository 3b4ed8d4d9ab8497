// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"bytes"
	_ "embed"
	"io"
	"time"
)

type OTLPMeterConfig struct {
	// Protocol is either "grpc" or "http".
	Protocol  string        `json:"protocol" koanf:"protocol"`
	ServerURL string        `json:"server_url" koanf:"server_url"`
	Insecure  bool          `json:"insecure" koanf:"insecure"`
	Interval  time.Duration `json:"interval" koanf:"interval"`
}

type StdoutMeterConfig struct {
	Pretty   bool          `json:"pretty" koanf:"pretty"`
	Interval time.Duration `json:"interval" koanf:"interval"`
}

type MeterProvidersConfig struct {
	OTLP   OTLPMeterConfig   `json:"otlp" koanf:"otlp"`
	Stdout StdoutMeterConfig `json:"stdout" koanf:"stdout"`
}

type MeterConfig struct {
	ServiceName string               `json:"service_name" koanf:"service_name"`
	Provider    string               `json:"provider" koanf:"provider"`
	Providers   MeterProvidersConfig `json:"providers" koanf:"providers"`
}

const (
	MeterProviderNone       = ""
	MeterProviderPrometheus = "prometheus"
	MeterProviderOTLP       = "otel"
	MeterProviderStdout     = "stdout"
)

//go:embed meter.schema.json
var MeterConfigSchema string

const MeterConfigSchemaID = "rentapp://metrics-config"

// AddMeterConfigSchema adds the metrics schema to the compiler.
func AddMeterConfigSchema(c interface {
	AddResource(url string, r io.Reader) error
},
) error {
	return c.AddResource(MeterConfigSchemaID, bytes.NewBufferString(MeterConfigSchema))
}
