package services

import (
	"context"
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// 下载闸门指标名称。
const (
	MetricDownloadsIssued  = "video_share_downloads_issued"
	MetricDownloadsRefused = "video_share_downloads_refused"
)

type downloadMetrics struct {
	issued  metric.Int64Counter
	refused metric.Int64Counter
}

func newDownloadMetrics(meter metric.Meter) (*downloadMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}
	issued, err := meter.Int64Counter(MetricDownloadsIssued,
		metric.WithDescription("One-time download links issued."))
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricDownloadsIssued, err)
	}
	refused, err := meter.Int64Counter(MetricDownloadsRefused,
		metric.WithDescription("Download requests refused, by reason."))
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricDownloadsRefused, err)
	}
	return &downloadMetrics{issued: issued, refused: refused}, nil
}

func (m *downloadMetrics) recordIssued(ctx context.Context) {
	m.issued.Add(ctx, 1)
}

// recordRefused 仅统计带业务原因的拒绝；基础设施错误不计入。
func (m *downloadMetrics) recordRefused(ctx context.Context, err error) {
	reason := kerrors.Reason(err)
	if reason == kerrors.UnknownReason {
		return
	}
	m.refused.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
