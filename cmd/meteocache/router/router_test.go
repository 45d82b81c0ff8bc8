package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HatiCode/meteocache/pkg/client"
	"github.com/HatiCode/meteocache/pkg/httpx"
	"github.com/HatiCode/meteocache/pkg/openmeteo"
	"github.com/HatiCode/meteocache/pkg/series"
)

type stubService struct {
	historicalReq client.HistoricalRequest
	forecastReq   client.ForecastRequest
	frag          *series.Fragment
	current       *openmeteo.CurrentResponse
	err           error

	forecastCleared   bool
	historicalCleared bool
	clearErr          error
}

func (s *stubService) Historical(_ context.Context, req client.HistoricalRequest) (*series.Fragment, error) {
	s.historicalReq = req
	return s.frag, s.err
}

func (s *stubService) Forecast(_ context.Context, req client.ForecastRequest) (*series.Fragment, error) {
	s.forecastReq = req
	return s.frag, s.err
}

func (s *stubService) Current(context.Context, float64, float64, string) (*openmeteo.CurrentResponse, error) {
	return s.current, s.err
}

func (s *stubService) ClearForecastCache() { s.forecastCleared = true }

func (s *stubService) ClearHistoricalCache(context.Context) error {
	s.historicalCleared = true
	return s.clearErr
}

func testFragment(t *testing.T) *series.Fragment {
	t.Helper()
	raw := `{"latitude":52.52,"longitude":13.41,"daily":{"time":["2024-01-01","2024-01-02"],"temperature_2m_max":[1.5,null]}}`
	f, err := series.Decode([]byte(raw), series.Daily)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return f
}

func serve(t *testing.T, svc Service, opts Options, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := SetupRoutes(svc, opts, logger)

	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := serve(t, &stubService{}, Options{}, http.MethodGet, "/healthz")

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", w.Body.String())
	}
	if w.Header().Get(httpx.RequestIDHeader) == "" {
		t.Error("response should carry a request ID")
	}
}

func TestHealthEndpoint_FailingCheck(t *testing.T) {
	opts := Options{Health: func(context.Context) error { return errors.New("redis down") }}
	w := serve(t, &stubService{}, opts, http.MethodGet, "/healthz")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := serve(t, &stubService{}, Options{}, http.MethodGet, "/metrics")

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Content-Type") == "" {
		t.Error("Content-Type header should be set for metrics endpoint")
	}
}

func TestHistorical_JSON(t *testing.T) {
	svc := &stubService{frag: testFragment(t)}
	w := serve(t, svc, Options{}, http.MethodGet,
		"/v1/historical?lat=52.52&lon=13.41&start=2024-01-01&end=2024-01-02&resolution=daily&variables=temperature_2m_max,%20precipitation_sum&full_months=true")

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	req := svc.historicalReq
	if req.Latitude != 52.52 || req.Longitude != 13.41 {
		t.Errorf("coords = (%v, %v)", req.Latitude, req.Longitude)
	}
	if !req.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || !req.End.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("window = %v..%v", req.Start, req.End)
	}
	if req.Resolution != series.Daily {
		t.Errorf("Resolution = %q, want daily", req.Resolution)
	}
	if len(req.Variables) != 2 || req.Variables[1] != "precipitation_sum" {
		t.Errorf("Variables = %v", req.Variables)
	}
	if !req.FullMonths {
		t.Error("FullMonths should be true")
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if _, ok := body["daily"]; !ok {
		t.Errorf("response missing daily block: %s", w.Body.String())
	}
}

func TestHistorical_CSV(t *testing.T) {
	svc := &stubService{frag: testFragment(t)}
	w := serve(t, svc, Options{}, http.MethodGet,
		"/v1/historical?lat=52.52&lon=13.41&start=2024-01-01&end=2024-01-02&resolution=daily&format=csv")

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	want := "time,temperature_2m_max\n2024-01-01,1.5\n2024-01-02,\n"
	if w.Body.String() != want {
		t.Errorf("body = %q, want %q", w.Body.String(), want)
	}
}

func TestHistorical_Typed(t *testing.T) {
	raw := `{"latitude":52.52,"daily":{"time":["2024-01-01","2024-01-02"],"temperature_2m_max":[1.5,null],"custom_index":[7,8]}}`
	frag, err := series.Decode([]byte(raw), series.Daily)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	svc := &stubService{frag: frag}

	w := serve(t, svc, Options{}, http.MethodGet,
		"/v1/historical?lat=52.52&lon=13.41&start=2024-01-01&end=2024-01-02&resolution=daily&format=typed")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp openmeteo.DailyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not a daily response: %v", err)
	}
	if resp.Latitude != 52.52 {
		t.Errorf("Latitude = %v, want 52.52", resp.Latitude)
	}
	if len(resp.Daily.Time) != 2 || len(resp.Daily.Temperature2mMax) != 2 {
		t.Fatalf("daily = %+v", resp.Daily)
	}
	if resp.Daily.Temperature2mMax[0] == nil || *resp.Daily.Temperature2mMax[0] != 1.5 || resp.Daily.Temperature2mMax[1] != nil {
		t.Errorf("temperature_2m_max = %v", resp.Daily.Temperature2mMax)
	}
	if strings.Contains(w.Body.String(), "custom_index") {
		t.Error("typed response must only carry known variables")
	}
}

func TestHistorical_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing lat", "/v1/historical?lon=1&start=2024-01-01&end=2024-01-02"},
		{"bad lon", "/v1/historical?lat=1&lon=east&start=2024-01-01&end=2024-01-02"},
		{"missing start", "/v1/historical?lat=1&lon=1&end=2024-01-02"},
		{"bad end", "/v1/historical?lat=1&lon=1&start=2024-01-01&end=01/02/2024"},
		{"bad full_months", "/v1/historical?lat=1&lon=1&start=2024-01-01&end=2024-01-02&full_months=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, &stubService{}, Options{}, http.MethodGet, tt.target)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
			}

			var resp httpx.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if resp.Error == "" || resp.RequestID == "" {
				t.Errorf("error response = %+v, want message and request ID", resp)
			}
		})
	}
}

func TestForecast_Params(t *testing.T) {
	svc := &stubService{frag: testFragment(t)}
	w := serve(t, svc, Options{}, http.MethodGet, "/v1/forecast?lat=1&lon=2&days=3&refresh=true&timezone=UTC")

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	req := svc.forecastReq
	if req.Days != 3 || !req.ForceRefresh || req.Timezone != "UTC" {
		t.Errorf("forecast request = %+v", req)
	}
}

func TestForecast_InvalidFormatAndDays(t *testing.T) {
	svc := &stubService{frag: testFragment(t)}

	w := serve(t, svc, Options{}, http.MethodGet, "/v1/forecast?lat=1&lon=2&format=xml")
	if w.Code != http.StatusBadRequest {
		t.Errorf("format=xml status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = serve(t, svc, Options{}, http.MethodGet, "/v1/forecast?lat=1&lon=2&days=many")
	if w.Code != http.StatusBadRequest {
		t.Errorf("days=many status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &client.ValidationError{Field: "Latitude", Reason: "latitude out of range"}, http.StatusBadRequest},
		{"api", &openmeteo.APIError{Reason: "Cannot initialize"}, http.StatusBadGateway},
		{"connection", &openmeteo.ConnectionError{URL: "u", Err: errors.New("refused")}, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{err: tt.err}
			w := serve(t, svc, Options{}, http.MethodGet, "/v1/forecast?lat=1&lon=2")
			if w.Code != tt.want {
				t.Errorf("status code = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestCurrent(t *testing.T) {
	temp := 12.5
	svc := &stubService{current: &openmeteo.CurrentResponse{}}
	svc.current.Current.Temperature2m = &temp

	w := serve(t, svc, Options{}, http.MethodGet, "/v1/current?lat=1&lon=2")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"temperature_2m":12.5`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestClearCaches(t *testing.T) {
	svc := &stubService{}

	w := serve(t, svc, Options{}, http.MethodDelete, "/v1/cache/forecast")
	if w.Code != http.StatusNoContent || !svc.forecastCleared {
		t.Errorf("clear forecast: status %d, cleared %v", w.Code, svc.forecastCleared)
	}

	w = serve(t, svc, Options{}, http.MethodDelete, "/v1/cache/historical")
	if w.Code != http.StatusNoContent || !svc.historicalCleared {
		t.Errorf("clear historical: status %d, cleared %v", w.Code, svc.historicalCleared)
	}

	svc.clearErr = errors.New("disk full")
	w = serve(t, svc, Options{}, http.MethodDelete, "/v1/cache/historical")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("clear historical failure: status %d, want 500", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	w := serve(t, &stubService{}, Options{}, http.MethodPost, "/v1/forecast?lat=1&lon=2")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
