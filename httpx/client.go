package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/slogx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
)

func (c *Client) MakeHTTPRequest(ctx context.Context, input *Request) (*Response, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var body io.Reader
	if input.Body != nil {
		requestBodyBytes, err := json.Marshal(input.Body)
		if err != nil {
			return nil, errorx.InvalidArgumentErrorf("failed to encode request body: %v", err)
		}
		body = bytes.NewBuffer(requestBodyBytes)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, input.Method, input.URL, body)
	if err != nil {
		return nil, errorx.InvalidArgumentErrorf("invalid request: %v", err)
	}

	buildQueryParams(httpRequest, input.QueryParameters)

	httpRequest.Header = input.Headers.Clone()
	if httpRequest.Header == nil {
		httpRequest.Header = http.Header{}
	}
	if input.Body != nil && httpRequest.Header.Get("Content-Type") == "" {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	if requestID, ok := slogx.RequestIDFromContext(ctx); ok && httpRequest.Header.Get(RequestIDHeaderKey) == "" {
		httpRequest.Header.Set(RequestIDHeaderKey, requestID)
	}
	otelhttptrace.Inject(ctx, httpRequest, otelhttptrace.WithPropagators(c.propagator))

	startTime := time.Now()

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, errorx.UnavailableErrorf("%s %s failed", input.Method, input.URL).WithOriginalError(err)
	}

	defer httpResponse.Body.Close()

	endTime := time.Since(startTime)

	respBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, errorx.UnavailableErrorf("failed to read the response of %s %s", input.Method, input.URL).WithOriginalError(err)
	}

	return &Response{
		StatusCode: httpResponse.StatusCode,
		Body:       respBody,
		Headers:    httpResponse.Header,
		Duration:   endTime,
	}, nil
}

// DoJSON sends input and decodes a successful JSON response into out. Error
// responses are decoded back into the error they were written from.
func (c *Client) DoJSON(ctx context.Context, input *Request, out any) error {
	res, err := c.MakeHTTPRequest(ctx, input)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return ErrorFromResponse(res)
	}
	if out == nil || len(res.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return errorx.InternalErrorf("failed to decode the response of %s %s: %v", input.Method, input.URL, err)
	}
	return nil
}

func buildQueryParams(httpRequest *http.Request, params url.Values) {
	if len(params) > 0 {
		requestQueryParams := httpRequest.URL.Query()

		for queryParamKey, queryParamValues := range params {
			for _, queryParamValue := range queryParamValues {
				requestQueryParams.Add(queryParamKey, queryParamValue)
			}
		}

		httpRequest.URL.RawQuery = requestQueryParams.Encode()
	}
}
