// Package reaper 按 cron 表达式周期性清理过期视频。
package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/google/wire"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// 清理任务指标名称。
const (
	MetricReaperRuns    = "video_share_reaper_runs"
	MetricReaperDeleted = "video_share_reaper_deleted"
	MetricReaperErrors  = "video_share_reaper_errors"
)

// ProviderSet 暴露 Scheduler 构造器。
var ProviderSet = wire.NewSet(ProvideScheduler)

// Reaper 执行一轮过期清理。
type Reaper interface {
	Reap(ctx context.Context) (*services.ReapReport, error)
}

var _ transport.Server = (*Scheduler)(nil)

// Scheduler 以 kratos transport.Server 的形式托管 cron 调度。
type Scheduler struct {
	reaper     Reaper
	schedule   string
	runTimeout time.Duration
	cron       *cron.Cron
	log        *log.Helper

	runs    metric.Int64Counter
	deleted metric.Int64Counter
	failed  metric.Int64Counter

	baseCtx context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

// Option 定义 Scheduler 的可选配置。
type Option func(*options)

type options struct {
	meter metric.Meter
}

// WithMeter 指定注册清理指标的 Meter，缺省为 noop。
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// NewScheduler 校验 cron 表达式并注册清理任务；同一时刻最多一轮在执行。
func NewScheduler(reaper Reaper, cfg configloader.Reaper, logger log.Logger, opts ...Option) (*Scheduler, error) {
	if reaper == nil {
		return nil, fmt.Errorf("reaper: reaper is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.meter == nil {
		o.meter = noop.NewMeterProvider().Meter("")
	}
	runs, err := o.meter.Int64Counter(MetricReaperRuns, metric.WithDescription("Reaper sweeps, by result."))
	if err != nil {
		return nil, fmt.Errorf("reaper: create %s counter: %w", MetricReaperRuns, err)
	}
	deleted, err := o.meter.Int64Counter(MetricReaperDeleted, metric.WithDescription("Expired videos deleted by the reaper."))
	if err != nil {
		return nil, fmt.Errorf("reaper: create %s counter: %w", MetricReaperDeleted, err)
	}
	failed, err := o.meter.Int64Counter(MetricReaperErrors, metric.WithDescription("Expired videos the reaper failed to delete."))
	if err != nil {
		return nil, fmt.Errorf("reaper: create %s counter: %w", MetricReaperErrors, err)
	}

	if logger == nil {
		logger = log.DefaultLogger
	}
	helper := log.NewHelper(logger)
	cronLogger := cronLogAdapter{log: helper}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		reaper:     reaper,
		schedule:   cfg.Schedule,
		runTimeout: cfg.RunTimeout.Std(),
		cron:       c,
		log:        helper,
		runs:       runs,
		deleted:    deleted,
		failed:     failed,
		baseCtx:    ctx,
		cancel:     cancel,
	}
	if _, err := c.AddFunc(cfg.Schedule, func() { _, _ = s.RunOnce(s.baseCtx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("reaper: parse schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// ProvideScheduler 供 Wire 使用，绑定到 ReaperService 并注册清理指标。
func ProvideScheduler(svc *services.ReaperService, cfg configloader.Reaper, meter metric.Meter, logger log.Logger) (*Scheduler, error) {
	return NewScheduler(svc, cfg, logger, WithMeter(meter))
}

// RunOnce 执行一轮清理并记录报告。
func (s *Scheduler) RunOnce(ctx context.Context) (*services.ReapReport, error) {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	report, err := s.reaper.Reap(ctx)
	if err != nil {
		s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "scan_failed")))
		s.log.WithContext(ctx).Errorf("reaper: sweep failed: %v", err)
		return nil, err
	}
	s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "completed")))
	s.deleted.Add(ctx, int64(report.Deleted))
	s.failed.Add(ctx, int64(len(report.Errors)))
	for _, reapErr := range report.Errors {
		s.log.WithContext(ctx).Warnf("reaper: video_id=%s err=%v", reapErr.VideoID, reapErr.Err)
	}
	s.log.WithContext(ctx).Infof("reaper: sweep finished scanned=%d deleted=%d errors=%d elapsed=%s",
		report.Scanned, report.Deleted, len(report.Errors), report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// Start 启动 cron 调度，立即返回。
func (s *Scheduler) Start(context.Context) error {
	s.log.Infof("reaper: scheduler started schedule=%q", s.schedule)
	s.cron.Start()
	return nil
}

// Stop 停止调度，并等待进行中的清理结束或 ctx 到期。
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		done := s.cron.Stop()
		select {
		case <-done.Done():
		case <-ctx.Done():
			err = ctx.Err()
		}
		s.cancel()
		s.log.Info("reaper: scheduler stopped")
	})
	return err
}

type cronLogAdapter struct {
	log *log.Helper
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...any) {
	a.log.Debugw(append([]any{"msg", "cron: " + msg}, keysAndValues...)...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.log.Errorw(append([]any{"msg", "cron: " + msg, "err", err}, keysAndValues...)...)
}
