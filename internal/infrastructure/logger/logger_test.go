package logger

import (
	"bytes"
	"testing"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, configloader.ServiceMetadata{Name: "svc", Version: "v1"}, configloader.Log{Level: "warn"})
	helper := log.NewHelper(logger)

	helper.Info("hidden")
	require.Empty(t, buf.String())

	helper.Warn("shown")
	out := buf.String()
	require.Contains(t, out, "shown")
	require.Contains(t, out, "service.name=svc")
	require.Contains(t, out, "service.version=v1")
	require.Contains(t, out, "trace_id=")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, log.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, log.LevelWarn, ParseLevel("warning"))
	require.Equal(t, log.LevelError, ParseLevel("error"))
	require.Equal(t, log.LevelInfo, ParseLevel(""))
}
