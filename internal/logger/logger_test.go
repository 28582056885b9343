package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestDetectEnv(t *testing.T) {
	for raw, want := range map[string]Env{
		"":            EnvDev,
		"dev":         EnvDev,
		"stage":       EnvStage,
		"Staging":     EnvStage,
		"prod":        EnvProd,
		" production": EnvProd,
	} {
		t.Setenv("APP_ENV", raw)
		assert.Equal(t, want, DetectEnv(), "APP_ENV=%q", raw)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestInit_DevStd_TextOutput(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	Init(Config{
		Service: "meet",
		Version: "v0.0.1",
		Env:     EnvDev,
		Backend: BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})
	slog.Info("hello world")

	out := buf.String()
	assert.False(t, strings.HasPrefix(out, "{"), "expected text output, got %s", out)
	assert.Contains(t, out, "hello world")
	assert.Contains(t, out, "service=meet")
	assert.Contains(t, out, "env=dev")
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	Init(Config{
		Service:          "meet",
		Version:          "1.2.3",
		Env:              EnvProd,
		Backend:          BackendZap,
		Level:            slog.LevelInfo,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})
	slog.Info("booted", slog.String("k", "v"))
	slog.Debug("filtered")
	require.NoError(t, Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &m))
	assert.Equal(t, "booted", m["msg"])
	assert.Equal(t, "INFO", m["level"])
	assert.Equal(t, "meet", m["service"])
	assert.Equal(t, "prod", m["env"])
	assert.Equal(t, "1.2.3", m["version"])
	assert.Equal(t, "v", m["k"])
}

func TestBaseAttrs(t *testing.T) {
	assert.Equal(t, "fixed", instanceID("fixed"))
	a, b := instanceID(""), instanceID("")
	assert.NotEqual(t, a, b)

	keys := func(attrs []slog.Attr) []string {
		out := make([]string, 0, len(attrs))
		for _, at := range attrs {
			out = append(out, at.Key)
		}
		return out
	}
	cfg := Config{Service: "meet", Env: EnvProd, InstanceID: "i-1"}
	assert.Equal(t, []string{"service", "env", "instance_id", "started_at"}, keys(baseAttrs(cfg)))

	cfg.Version = "1.2.3"
	assert.Contains(t, keys(baseAttrs(cfg)), "version")
}

func TestInit_TraceIDsFromContext(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	Init(Config{
		Service: "meet",
		Env:     EnvStage,
		Backend: BackendStd,
		Output:  &buf,
	})

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	slog.InfoContext(ctx, "with trace")
	span.End()

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "with trace", m["msg"])
	assert.Equal(t, span.SpanContext().TraceID().String(), m["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), m["span_id"])
}

func TestAttrsFromCtx_NoSpan(t *testing.T) {
	assert.Nil(t, AttrsFromCtx(context.Background()))
}

func TestFromContext(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer
	base := Init(Config{Env: EnvDev, Backend: BackendStd, Output: &buf})

	assert.Same(t, base, FromContext(context.Background()))

	scoped := base.With("req_id", "abc")
	ctx := WithContext(context.Background(), scoped)
	FromContext(ctx).Info("scoped")
	assert.Contains(t, buf.String(), "req_id=abc")
}
