package services_test

import (
	"bufio"
	"context"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/models/po"
	"github.com/bionicotaku/video-share-service/internal/server"
	"github.com/bionicotaku/video-share-service/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

// scrapeMetric 在 Prometheus 文本输出中查找以 name 开头且包含 label 的样本值。
func scrapeMetric(t *testing.T, telemetry *server.Telemetry, name, label string) (float64, bool) {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}).
		ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/metrics", nil))
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, name) || !strings.Contains(line, label) {
			continue
		}
		value, err := strconv.ParseFloat(line[strings.LastIndex(line, " ")+1:], 64)
		require.NoError(t, err)
		return value, true
	}
	return 0, false
}

func TestDownloadMetricsExportedOnScrape(t *testing.T) {
	logger := log.NewStdLogger(io.Discard)
	telemetry, cleanup, err := server.NewTelemetry(configloader.ServiceMetadata{Name: "video-share-test"}, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	repo, store, clk := newMemRepo(), newFakeStore(), newClock()
	svc, err := services.NewDownloadService(repo, store, services.DownloadPolicy{URLTTL: 10 * time.Minute}, logger,
		services.WithDownloadClock(clk.Now), services.WithDownloadMeter(server.ProvideMeter(telemetry)))
	require.NoError(t, err)
	ctx := context.Background()

	video := seedVideo(repo, store, nil)
	pending := seedVideo(repo, store, func(v *po.Video) { v.ConfirmedAt = nil })

	_, err = svc.IssueDownloadLink(ctx, video.VideoID)
	require.NoError(t, err)
	_, err = svc.IssueDownloadLink(ctx, video.VideoID)
	require.Error(t, err)
	_, err = svc.IssueDownloadLink(ctx, video.VideoID)
	require.Error(t, err)
	_, err = svc.IssueDownloadLink(ctx, pending.VideoID)
	require.Error(t, err)

	issued, ok := scrapeMetric(t, telemetry, services.MetricDownloadsIssued, "")
	require.True(t, ok)
	require.EqualValues(t, 1, issued)

	refused, ok := scrapeMetric(t, telemetry, services.MetricDownloadsRefused, `reason="`+services.ReasonAlreadyDownloaded+`"`)
	require.True(t, ok)
	require.EqualValues(t, 2, refused)

	refused, ok = scrapeMetric(t, telemetry, services.MetricDownloadsRefused, `reason="`+services.ReasonUploadPending+`"`)
	require.True(t, ok)
	require.EqualValues(t, 1, refused)
}

func TestDownloadMetricsSkipInfrastructureErrors(t *testing.T) {
	logger := log.NewStdLogger(io.Discard)
	telemetry, cleanup, err := server.NewTelemetry(configloader.ServiceMetadata{Name: "video-share-test"}, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	repo, store, clk := newMemRepo(), newFakeStore(), newClock()
	svc, err := services.NewDownloadService(repo, store, services.DownloadPolicy{URLTTL: 10 * time.Minute}, logger,
		services.WithDownloadClock(clk.Now), services.WithDownloadMeter(telemetry.Meter))
	require.NoError(t, err)

	video := seedVideo(repo, store, nil)
	store.signErr = errBackend
	_, err = svc.IssueDownloadLink(context.Background(), video.VideoID)
	require.Error(t, err)

	_, ok := scrapeMetric(t, telemetry, services.MetricDownloadsIssued, "")
	require.False(t, ok)
	_, ok = scrapeMetric(t, telemetry, services.MetricDownloadsRefused, "")
	require.False(t, ok)
}
