package httpx

import (
	"crypto/tls"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
)

type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	propagator propagation.TextMapPropagator
}

// GetDefaultHTTPClient returns an HTTP client with basic settings
func GetDefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: httpClientDefaultTimeout,
	}
}

// NewHTTPClient returns a default HTTP client with default options
func NewHTTPClient() *Client {
	httpClient := GetDefaultHTTPClient()
	httpClient.Transport = &http.Transport{}

	return &Client{
		httpClient: httpClient,
		propagator: defaultPropagator(),
	}
}

// NewClientWithOptions creates a configurable HTTP Client
func NewClientWithOptions(options ...Option) *Client {
	client := &Client{
		transport: &http.Transport{
			TLSClientConfig: &tls.Config{},
		},
		propagator: defaultPropagator(),
	}

	client.httpClient = &http.Client{
		Timeout: httpClientDefaultTimeout,
	}

	for _, opt := range options {
		opt(client)
	}

	client.httpClient.Transport = client.transport

	return client
}

func defaultPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}
