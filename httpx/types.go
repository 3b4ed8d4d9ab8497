package httpx

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rentapp/x/errorx"
)

const httpClientDefaultTimeout = 60 * time.Second

// Request is the input parameters that will need to be sent with an HTTP request
type Request struct {
	Method          string
	URL             string
	Body            any
	Headers         http.Header
	QueryParameters url.Values
}

// Validate validates if the struct contains the required entities or not
func (r *Request) Validate() error {
	if r.Method == "" {
		return errorx.InvalidArgumentErrorf("request method is required")
	}
	if r.URL == "" {
		return errorx.InvalidArgumentErrorf("request url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errorx.InvalidArgumentErrorf("request url %q is not absolute", r.URL)
	}
	return nil
}

// Response struct will contain the entities returned with the HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Duration   time.Duration
}

// Validate validates if the struct contains the required entities or not
func (r *Response) Validate() error {
	if r.StatusCode == 0 {
		return errorx.InvalidArgumentErrorf("response status code is required")
	}
	return nil
}

// IsSuccess reports a 2xx status code.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
