package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sf-exporter/service"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	got    service.Params
	calls  int
	result service.CompletionPayload
}

func (s *stubRunner) Run(ctx context.Context, p service.Params, r service.Reporter) service.CompletionPayload {
	s.calls++
	s.got = p
	r.Report(ctx, s.result)
	return s.result
}

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestExportHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		result     service.CompletionPayload
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "ok",
			body:       `{"command":"SELECT 1 AS X","args":{"day":"2024-01-01"},"csvFileExport":"/tmp/x.csv"}`,
			result:     service.CompletionPayload{End: service.EndOK, DataOutput: []service.Row{}, ExtraOutput: map[string]any{"db_countrows": 1}},
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "failed run",
			body:       `{"command":"SELEC 1"}`,
			result:     service.CompletionPayload{End: service.EndError, MessageLog: "execute-snowflake: boom", ErrOutput: "execute-snowflake: boom"},
			wantStatus: http.StatusInternalServerError,
			wantCalls:  1,
		},
		{
			name:       "bad body",
			body:       `{"command":`,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{result: tt.result}
			w := do(t, NewRouter(RouterConfig{}, runner), http.MethodPost, "/api/export", tt.body, nil)

			require.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, tt.wantCalls, runner.calls)
			if tt.wantCalls == 0 {
				return
			}
			var got map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			require.Equal(t, tt.result.End, got["end"])
		})
	}
}

func TestExportHandler_BindsParams(t *testing.T) {
	runner := &stubRunner{result: service.CompletionPayload{End: service.EndOK}}
	body := `{"command_file":"q.sql","args":{"n":5},"xlsxFileExport":"/tmp/a.xlsx","xlsxSheetName":"S","stream":false}`

	w := do(t, NewRouter(RouterConfig{}, runner), http.MethodPost, "/api/export", body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "q.sql", runner.got.CommandFile)
	require.Equal(t, float64(5), runner.got.Args["n"])
	require.Equal(t, "S", runner.got.XLSXSheetName)
	require.False(t, runner.got.Streaming())
}

func TestRouter_APIKey(t *testing.T) {
	runner := &stubRunner{result: service.CompletionPayload{End: service.EndOK}}
	r := NewRouter(RouterConfig{APIKey: "secret"}, runner)

	w := do(t, r, http.MethodPost, "/api/export", `{"command":"SELECT 1"}`, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Zero(t, runner.calls)

	w = do(t, r, http.MethodPost, "/api/export", `{"command":"SELECT 1"}`, map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, runner.calls)

	w = do(t, r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "exporter_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	w := do(t, NewRouter(RouterConfig{Gatherer: reg}, &stubRunner{}), http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "exporter_test_total 1")

	w = do(t, NewRouter(RouterConfig{}, &stubRunner{}), http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
