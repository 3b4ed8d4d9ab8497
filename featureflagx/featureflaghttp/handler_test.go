package featureflaghttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/featureflagx"
	"github.com/rentapp/x/httpx"
	"github.com/rentapp/x/kvx"
	inmemorykv "github.com/rentapp/x/kvx/inmemory"
	loggerxtest "github.com/rentapp/x/loggerx/test"
	"github.com/rentapp/x/metricsx"
	"github.com/rentapp/x/persistencex"
	"github.com/rentapp/x/testx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const flagPath = "/flags/rentapp_staff_enrollment_enabled"

type HandlerTestSuite struct {
	suite.Suite
	storage *inmemorykv.Storage
	server  *httptest.Server
	client  *httpx.Client
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	s.storage = inmemorykv.New()
	l := loggerxtest.NewTestLogger(s.T())
	s.server = httptest.NewServer(NewHandler(featureflagx.NewStore(s.storage), WithLogger(l)))
	s.client = httpx.NewHTTPClient()
}

func (s *HandlerTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerTestSuite) do(method, path string, body any, out any) error {
	return s.client.DoJSON(context.Background(), &httpx.Request{
		Method: method,
		URL:    s.server.URL + path,
		Body:   body,
	}, out)
}

func (s *HandlerTestSuite) stored() string {
	v, _, err := s.storage.Get(context.Background(), featureflagx.StaffEnrollment.String())
	s.Require().NoError(err)
	return v
}

func (s *HandlerTestSuite) TestAlive() {
	var out map[string]string
	s.Require().NoError(s.do(http.MethodGet, HealthPath, nil, &out))
	s.Equal("ok", out["status"])
}

func (s *HandlerTestSuite) TestGetDefaultsToDisabled() {
	var out FlagState
	s.Require().NoError(s.do(http.MethodGet, flagPath, nil, &out))
	s.Equal(FlagState{Flag: featureflagx.StaffEnrollment, Enabled: false}, out)
}

func (s *HandlerTestSuite) TestScenario() {
	var out FlagState

	s.Require().NoError(s.do(http.MethodPost, flagPath+"/enable", nil, &out))
	s.True(out.Enabled)
	s.Equal("true", s.stored())

	s.Require().NoError(s.do(http.MethodPost, flagPath+"/toggle", nil, &out))
	s.False(out.Enabled)
	s.Equal("false", s.stored())

	s.Require().NoError(s.do(http.MethodPost, flagPath+"/toggle", nil, &out))
	s.True(out.Enabled)
	s.Equal("true", s.stored())

	s.Require().NoError(s.do(http.MethodPost, flagPath+"/disable", nil, &out))
	s.False(out.Enabled)
	s.Equal("false", s.stored())
}

func (s *HandlerTestSuite) TestSet() {
	var out FlagState
	s.Require().NoError(s.do(http.MethodPut, flagPath, map[string]bool{"enabled": true}, &out))
	s.True(out.Enabled)
	s.Equal("true", s.stored())

	s.Require().NoError(s.do(http.MethodPut, flagPath, map[string]bool{"enabled": false}, &out))
	s.False(out.Enabled)
	s.Equal("false", s.stored())
}

func (s *HandlerTestSuite) TestSetRejectsMalformedBodies() {
	for _, body := range []any{
		map[string]string{"enabled": "true"},
		map[string]bool{},
		map[string]bool{"enabled": true, "other": true},
		"true",
	} {
		err := s.do(http.MethodPut, flagPath, body, nil)
		s.True(errorx.IsInvalidArgumentError(err), "body %v: %v", body, err)
	}
	_, found, err := s.storage.Get(context.Background(), featureflagx.StaffEnrollment.String())
	s.Require().NoError(err)
	s.False(found)
}

func (s *HandlerTestSuite) TestList() {
	s.Require().NoError(s.storage.Set(context.Background(), featureflagx.StaffEnrollment.String(), "true"))

	var out FlagsState
	s.Require().NoError(s.do(http.MethodGet, FlagsPath, nil, &out))
	s.Equal(map[featureflagx.FeatureFlag]bool{featureflagx.StaffEnrollment: true}, out.Flags)
}

func (s *HandlerTestSuite) TestUnknownFlag() {
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/flags/unknown"},
		{http.MethodPut, "/flags/unknown"},
		{http.MethodPost, "/flags/unknown/enable"},
		{http.MethodPost, "/flags/unknown/disable"},
		{http.MethodPost, "/flags/unknown/toggle"},
	} {
		var body any
		if tc.method == http.MethodPut {
			body = map[string]bool{"enabled": true}
		}
		err := s.do(tc.method, tc.path, body, nil)
		s.True(errorx.IsNotFoundError(err), "%s %s: %v", tc.method, tc.path, err)
	}
	keys, err := s.storage.Keys(context.Background())
	s.Require().NoError(err)
	s.Empty(keys)
}

func (s *HandlerTestSuite) TestRequestID() {
	res, err := s.client.MakeHTTPRequest(context.Background(), &httpx.Request{
		Method: http.MethodGet,
		URL:    s.server.URL + HealthPath,
	})
	s.Require().NoError(err)
	s.NotEmpty(res.Headers.Get(httpx.RequestIDHeaderKey))
}

func TestHandlerErrorBodies(t *testing.T) {
	h := NewHandler(featureflagx.NewStore(inmemorykv.New()))

	for _, tc := range []struct {
		name   string
		method string
		path   string
		body   string
		code   int
		typ    errorx.ErrorType
	}{
		{"unknown flag", http.MethodGet, "/flags/nope", "", http.StatusNotFound, errorx.ErrorTypeNotFound},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, errorx.ErrorTypeNotFound},
		{"malformed body", http.MethodPut, flagPath, "{", http.StatusBadRequest, errorx.ErrorTypeInvalidArgument},
		{"wrong method", http.MethodDelete, flagPath, "", http.StatusMethodNotAllowed, errorx.ErrorTypeUnimplemented},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))

			assert.Equal(t, tc.code, w.Code)
			var body errorx.RentappError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.typ, body.Type)
			assert.NotEmpty(t, body.Message)

			rErr, ok := errorx.IsRentappError(httpx.ErrorFromResponse(&httpx.Response{StatusCode: w.Code, Body: w.Body.Bytes()}))
			require.True(t, ok)
			assert.Equal(t, tc.typ, rErr.Type)
		})
	}
}

func TestHandlerObservesUnmatchedRequests(t *testing.T) {
	ctx := context.Background()
	l, buf := loggerxtest.NewTestLoggerWithJSONBuffer(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })
	metrics, err := metricsx.NewHTTPMetrics(mp)
	require.NoError(t, err)

	h := NewHandler(featureflagx.NewStore(inmemorykv.New()), WithLogger(l), WithMetrics(metrics))
	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/nope", nil),
		httptest.NewRequest(http.MethodDelete, flagPath, nil),
		httptest.NewRequest(http.MethodGet, flagPath, nil),
	} {
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	out := buf.String()
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"status":405`)
	assert.Contains(t, out, `"route":"unmatched"`)
	assert.Contains(t, out, `"route":"/flags/{flag}"`)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	codes := map[int64]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != "featureflag.http.requests" || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				code, _ := dp.Attributes.Value("code")
				codes[code.AsInt64()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[int64]int64{404: 1, 405: 1, 200: 1}, codes)
}

func TestHandlerUnavailableStorage(t *testing.T) {
	h := NewHandler(featureflagx.NewStore(kvx.Unavailable()))

	for _, path := range []string{flagPath + "/enable", flagPath + "/disable"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"flag":"rentapp_staff_enrollment_enabled","enabled":false}`, w.Body.String())
	}
}

func TestHandlerStored(t *testing.T) {
	ctx := context.Background()
	storage := inmemorykv.New()
	for _, k := range []string{"c_flag", "a_flag", featureflagx.StaffEnrollment.String()} {
		require.NoError(t, storage.Set(ctx, k, "true"))
	}
	h := NewHandler(featureflagx.NewStore(storage))

	rr, page := testx.GetJSON[persistencex.ListResponse[featureflagx.FeatureFlag]](t, h, StoredPath+"?per_page=2")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []featureflagx.FeatureFlag{"a_flag", "c_flag"}, page.Data)
	assert.Equal(t, persistencex.NewListResponseMeta(0, 2, 3), page.Meta)

	_, page = testx.GetJSON[persistencex.ListResponse[featureflagx.FeatureFlag]](t, h, StoredPath+"?page=1&per_page=2")
	assert.Equal(t, []featureflagx.FeatureFlag{featureflagx.StaffEnrollment}, page.Data)

	rr, page = testx.GetJSON[persistencex.ListResponse[featureflagx.FeatureFlag]](t, h, StoredPath+"?page=184467440737095516&per_page=100")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, page.Data)

	rr, _ = testx.GetJSON[errorx.RentappError](t, h, StoredPath+"?page=x")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, body := testx.GetJSON[errorx.RentappError](t, NewHandler(featureflagx.NewStore(kvx.Unavailable())), StoredPath)
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
	assert.Equal(t, errorx.ErrorTypeUnimplemented, body.Type)
}

func TestHandlerSetWithRecorder(t *testing.T) {
	h := NewHandler(featureflagx.NewStore(inmemorykv.New()))

	rr, state := testx.PutJSON[FlagState](t, h, flagPath, `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, FlagState{Flag: featureflagx.StaffEnrollment, Enabled: true}, state)

	_, state = testx.PostJSON[FlagState](t, h, flagPath+"/toggle", "")
	assert.False(t, state.Enabled)
}
