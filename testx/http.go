package testx

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Do serves a request on h without a listener and decodes the JSON answer
// into T. An empty body sends no payload.
func Do[T any](t testing.TB, h http.Handler, method, url, body string) (*httptest.ResponseRecorder, T) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var out T
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr, out
}

func GetJSON[T any](t testing.TB, h http.Handler, url string) (*httptest.ResponseRecorder, T) {
	t.Helper()
	return Do[T](t, h, http.MethodGet, url, "")
}

func PostJSON[T any](t testing.TB, h http.Handler, url, body string) (*httptest.ResponseRecorder, T) {
	t.Helper()
	return Do[T](t, h, http.MethodPost, url, body)
}

func PutJSON[T any](t testing.TB, h http.Handler, url, body string) (*httptest.ResponseRecorder, T) {
	t.Helper()
	return Do[T](t, h, http.MethodPut, url, body)
}
