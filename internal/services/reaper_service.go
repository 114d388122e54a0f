package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	"github.com/bionicotaku/video-share-service/internal/models/po"
	"github.com/bionicotaku/video-share-service/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ReaperRepository 抽象过期清理所需的元数据操作。
type ReaperRepository interface {
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*po.Video, error)
	Delete(ctx context.Context, videoID uuid.UUID) error
}

// ReaperObjectStore 定义过期清理所需的对象删除能力。
type ReaperObjectStore interface {
	Delete(ctx context.Context, key string) error
}

// ReaperPolicy 清理批次参数。
type ReaperPolicy struct {
	BatchSize   int
	Concurrency int
}

// NewReaperPolicy 从配置构造 ReaperPolicy。
func NewReaperPolicy(cfg configloader.Reaper) ReaperPolicy {
	return ReaperPolicy{BatchSize: cfg.BatchSize, Concurrency: cfg.Concurrency}
}

// ReapError 记录单条视频的清理失败。
type ReapError struct {
	VideoID uuid.UUID
	Err     error
}

func (e ReapError) Error() string {
	return fmt.Sprintf("reap video %s: %v", e.VideoID, e.Err)
}

func (e ReapError) Unwrap() error { return e.Err }

// ReapReport 汇总一次清理的结果。
type ReapReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int
	Deleted    int
	Errors     []ReapError
}

// ReaperOption 定义 ReaperService 的可选配置。
type ReaperOption func(*ReaperService)

// WithReaperClock 覆盖时间获取函数。
func WithReaperClock(now func() time.Time) ReaperOption {
	return func(s *ReaperService) {
		if now != nil {
			s.now = now
		}
	}
}

// ReaperService 清理过期视频的对象与记录。
type ReaperService struct {
	repo   ReaperRepository
	store  ReaperObjectStore
	policy ReaperPolicy
	log    *log.Helper
	now    func() time.Time
}

// NewReaperService 创建 ReaperService。
func NewReaperService(repo ReaperRepository, store ReaperObjectStore, policy ReaperPolicy, logger log.Logger, opts ...ReaperOption) (*ReaperService, error) {
	if repo == nil {
		return nil, errors.New("reaper service: repository is required")
	}
	if store == nil {
		return nil, errors.New("reaper service: object store is required")
	}
	if policy.Concurrency <= 0 {
		policy.Concurrency = 1
	}
	svc := &ReaperService{
		repo:   repo,
		store:  store,
		policy: policy,
		log:    log.NewHelper(logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Reap 扫描 expires_at <= now 的记录，逐条先删对象再删记录。
// 单条失败只记录在报告中；仅扫描失败时返回 error。
// 对象删除失败的记录会被保留，留待下次清理重试。
func (s *ReaperService) Reap(ctx context.Context) (*ReapReport, error) {
	report := &ReapReport{StartedAt: s.now()}

	expired, err := s.repo.ListExpired(ctx, report.StartedAt.UTC(), s.policy.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("scan expired videos: %w", err)
	}
	report.Scanned = len(expired)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.policy.Concurrency)
	for _, video := range expired {
		g.Go(func() error {
			err := s.reapOne(gctx, video)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors = append(report.Errors, ReapError{VideoID: video.VideoID, Err: err})
				return nil
			}
			report.Deleted++
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = s.now()
	if len(report.Errors) > 0 {
		s.log.WithContext(ctx).Warnf("reap finished with errors: scanned=%d deleted=%d errors=%d", report.Scanned, report.Deleted, len(report.Errors))
	} else {
		s.log.WithContext(ctx).Infof("reap finished: scanned=%d deleted=%d", report.Scanned, report.Deleted)
	}
	return report, nil
}

func (s *ReaperService) reapOne(ctx context.Context, video *po.Video) error {
	if err := s.store.Delete(ctx, video.ObjectKey); err != nil && !errors.Is(err, gcs.ErrObjectNotFound) {
		s.log.WithContext(ctx).Errorf("reap object failed: video_id=%s key=%s err=%v", video.VideoID, video.ObjectKey, err)
		return fmt.Errorf("delete object: %w", err)
	}
	if err := s.repo.Delete(ctx, video.VideoID); err != nil && !errors.Is(err, repositories.ErrVideoNotFound) {
		s.log.WithContext(ctx).Errorf("reap record failed: video_id=%s err=%v", video.VideoID, err)
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
