package httpmw

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dracko000/meet/internal/logger"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// captureLogs routes the default logger into a JSON buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger.Init(logger.Config{Env: logger.EnvProd, Backend: logger.BackendStd, Output: &buf})
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m))
	return m
}

func TestAccessLog_CarriesRequestAndTraceIDs(t *testing.T) {
	prevLogger := slog.Default()
	prevTP := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		slog.SetDefault(prevLogger)
		otel.SetTracerProvider(prevTP)
		_ = tp.Shutdown(context.Background())
	})

	var buf bytes.Buffer
	logger.Init(logger.Config{Env: logger.EnvProd, Backend: logger.BackendStd, Output: &buf})

	h := middleware.RequestID(Trace(RequestLogger(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/x?limit=1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	m := lastLine(t, &buf)
	assert.Equal(t, "http_request", m["msg"])
	assert.Equal(t, "WARN", m["level"])
	assert.Equal(t, float64(404), m["status"])
	assert.Equal(t, "/rooms/x", m["path"])
	assert.Equal(t, "limit=1", m["query"])
	assert.NotEmpty(t, m["req_id"])
	assert.NotEmpty(t, m["trace_id"])
}

func TestAccessLog_ImplicitOK(t *testing.T) {
	buf := captureLogs(t)

	h := RequestLogger(AccessLog(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	m := lastLine(t, buf)
	assert.Equal(t, "INFO", m["level"])
	assert.Equal(t, float64(200), m["status"])
	assert.Equal(t, float64(0), m["bytes"])
}
