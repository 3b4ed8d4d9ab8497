package httpx

import (
	"net/http"

	"github.com/rentapp/x/errorx"
)

const RequestIDHeaderKey = "X-Request-Id"

// SetRequestIDHeader sets the request id header of r unless present.
func SetRequestIDHeader(r *http.Request, requestID string) error {
	if r == nil {
		return errorx.InternalErrorf("request can not be nil")
	}
	if r.Header.Get(RequestIDHeaderKey) == "" {
		r.Header.Set(RequestIDHeaderKey, requestID)
	}
	return nil
}
