// Package logger builds the process-wide kratos logger.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger builds a Kratos logger annotated with service metadata and trace/span ids,
// filtered by the configured level.
func NewLogger(meta configloader.ServiceMetadata, cfg configloader.Log) log.Logger {
	return newLogger(os.Stdout, meta, cfg)
}

func newLogger(w io.Writer, meta configloader.ServiceMetadata, cfg configloader.Log) log.Logger {
	base := log.With(
		log.NewStdLogger(w),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", meta.Name,
		"service.version", meta.Version,
		"service.id", meta.InstanceID,
		"environment", meta.Environment,
		"trace_id", log.Valuer(func(ctx context.Context) interface{} {
			sc := trace.SpanContextFromContext(ctx)
			if sc.HasTraceID() {
				return sc.TraceID().String()
			}
			return ""
		}),
		"span_id", log.Valuer(func(ctx context.Context) interface{} {
			sc := trace.SpanContextFromContext(ctx)
			if sc.HasSpanID() {
				return sc.SpanID().String()
			}
			return ""
		}),
	)
	return log.NewFilter(base, log.FilterLevel(ParseLevel(cfg.Level)))
}

// ParseLevel maps a config string onto a kratos level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
