package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/rentapp/x/errorx"
)

// StatusCode maps an error to the HTTP status answered for it.
func StatusCode(err error) int {
	rErr, ok := errorx.IsRentappError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch rErr.Type {
	case errorx.ErrorTypeAlreadyExists:
		return http.StatusConflict
	case errorx.ErrorTypeFailedPrecondition:
		return http.StatusPreconditionFailed
	case errorx.ErrorTypeInvalidArgument:
		return http.StatusBadRequest
	case errorx.ErrorTypeNotFound:
		return http.StatusNotFound
	case errorx.ErrorTypeUnimplemented:
		return http.StatusNotImplemented
	case errorx.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError answers err as a {"type", "message"} document. Errors outside
// the errorx taxonomy are hidden behind a generic internal error.
func WriteError(w http.ResponseWriter, err error) {
	rErr, ok := errorx.IsRentappError(err)
	if !ok {
		rErr = &errorx.RentappError{Type: errorx.ErrorTypeInternal, Message: "internal server error"}
	}
	WriteJSON(w, StatusCode(rErr), rErr)
}

// ErrorFromResponse rebuilds the error written by WriteError.
func ErrorFromResponse(res *Response) error {
	var rErr errorx.RentappError
	if err := json.Unmarshal(res.Body, &rErr); err != nil || rErr.Type.Validate() != nil {
		return errorx.InternalErrorf("unexpected status %d: %s", res.StatusCode, res.Body)
	}
	return rErr
}
