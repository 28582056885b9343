package logger

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

var processStart = time.Now()

// instanceID returns v, or host-pid-suffix when v is empty. Replicas that
// share a hostname still get distinct ids.
func instanceID(v string) string {
	if v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "meet"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// baseAttrs are attached to every record. version is left out when unset.
func baseAttrs(cfg Config) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("instance_id", cfg.InstanceID),
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return append(attrs, slog.Time("started_at", processStart))
}
