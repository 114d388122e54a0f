package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	"github.com/bionicotaku/video-share-service/internal/models/po"
	"github.com/bionicotaku/video-share-service/internal/models/vo"
	"github.com/bionicotaku/video-share-service/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// DownloadRepository 抽象下载闸门所需的元数据操作。
type DownloadRepository interface {
	Get(ctx context.Context, videoID uuid.UUID) (*po.Video, error)
	List(ctx context.Context) ([]*po.Video, error)
	MarkDownloaded(ctx context.Context, videoID uuid.UUID, at time.Time) (*po.Video, error)
	SetEnabled(ctx context.Context, videoID uuid.UUID, enabled bool, at time.Time) (*po.Video, error)
	Delete(ctx context.Context, videoID uuid.UUID) error
}

// DownloadObjectStore 定义下载与删除所需的对象存储能力。
type DownloadObjectStore interface {
	SignedGetURL(ctx context.Context, key, fileName string, ttl time.Duration) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

// DownloadPolicy 下载相关策略。
type DownloadPolicy struct {
	URLTTL time.Duration
}

// NewDownloadPolicy 从配置构造 DownloadPolicy。
func NewDownloadPolicy(video configloader.Video) DownloadPolicy {
	return DownloadPolicy{URLTTL: video.DownloadURLTTL()}
}

// DownloadOption 定义 DownloadService 的可选配置。
type DownloadOption func(*DownloadService)

// WithDownloadClock 覆盖时间获取函数。
func WithDownloadClock(now func() time.Time) DownloadOption {
	return func(s *DownloadService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDownloadMeter 指定注册下载指标的 Meter，缺省为 noop。
func WithDownloadMeter(meter metric.Meter) DownloadOption {
	return func(s *DownloadService) {
		s.meter = meter
	}
}

// DownloadService 实现一次性下载协议及管理端的启停、列表与删除。
type DownloadService struct {
	repo    DownloadRepository
	store   DownloadObjectStore
	policy  DownloadPolicy
	log     *log.Helper
	now     func() time.Time
	meter   metric.Meter
	metrics *downloadMetrics
}

// NewDownloadService 创建 DownloadService。
func NewDownloadService(repo DownloadRepository, store DownloadObjectStore, policy DownloadPolicy, logger log.Logger, opts ...DownloadOption) (*DownloadService, error) {
	if repo == nil {
		return nil, errors.New("download service: repository is required")
	}
	if store == nil {
		return nil, errors.New("download service: object store is required")
	}
	if policy.URLTTL <= 0 {
		return nil, errors.New("download service: url ttl must be positive")
	}
	svc := &DownloadService{
		repo:   repo,
		store:  store,
		policy: policy,
		log:    log.NewHelper(logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	metrics, err := newDownloadMetrics(svc.meter)
	if err != nil {
		return nil, fmt.Errorf("download service: %w", err)
	}
	svc.metrics = metrics
	return svc, nil
}

// GetPublicInfo 返回接收方可见的视频信息；已过期返回 410。
func (s *DownloadService) GetPublicInfo(ctx context.Context, videoID uuid.UUID) (*vo.PublicVideo, error) {
	now := s.now()
	video, err := s.loadLive(ctx, videoID, now)
	if err != nil {
		return nil, err
	}
	return vo.NewPublicVideo(video, now), nil
}

// IssueDownloadLink 签发短期下载 URL，并在返回前以条件更新标记为已下载。
// 并发请求中只有一个能通过条件更新，其余按记录的最新状态返回 Forbidden。
func (s *DownloadService) IssueDownloadLink(ctx context.Context, videoID uuid.UUID) (*vo.DownloadLink, error) {
	now := s.now()
	video, err := s.loadLive(ctx, videoID, now)
	if err != nil {
		s.metrics.recordRefused(ctx, err)
		return nil, err
	}
	if err := checkDownloadable(video); err != nil {
		s.metrics.recordRefused(ctx, err)
		return nil, err
	}

	url, expiresAt, err := s.store.SignedGetURL(ctx, video.ObjectKey, video.FileName, s.policy.URLTTL)
	if err != nil {
		return nil, ErrStorageUnavailable("sign download url failed", err)
	}

	if _, err := s.repo.MarkDownloaded(ctx, videoID, now.UTC()); err != nil {
		if errors.Is(err, repositories.ErrConditionFailed) {
			conflict := s.classifyConflict(ctx, videoID)
			s.metrics.recordRefused(ctx, conflict)
			return nil, conflict
		}
		return nil, fmt.Errorf("mark downloaded: %w", err)
	}
	s.metrics.recordIssued(ctx)

	s.log.WithContext(ctx).Infof("download link issued: video_id=%s expires_at=%s", videoID, expiresAt.Format(time.RFC3339))
	return &vo.DownloadLink{
		VideoID:   video.VideoID,
		URL:       url,
		FileName:  video.FileName,
		ExpiresAt: expiresAt,
	}, nil
}

// SetEnabled 切换下载开关；重新启用会同时重置已下载标记。
func (s *DownloadService) SetEnabled(ctx context.Context, videoID uuid.UUID, enabled bool) (*vo.AdminVideo, error) {
	now := s.now()
	video, err := s.repo.SetEnabled(ctx, videoID, enabled, now.UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return nil, ErrVideoNotFound()
		}
		return nil, fmt.Errorf("set enabled: %w", err)
	}
	s.log.WithContext(ctx).Infof("video toggled: video_id=%s enabled=%v", videoID, enabled)
	return vo.NewAdminVideo(video, now), nil
}

// List 返回全部视频（按创建时间倒序）。
func (s *DownloadService) List(ctx context.Context) ([]*vo.AdminVideo, error) {
	videos, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	now := s.now()
	items := make([]*vo.AdminVideo, 0, len(videos))
	for _, video := range videos {
		items = append(items, vo.NewAdminVideo(video, now))
	}
	return items, nil
}

// Delete 先删除对象再删除记录；对象删除失败时保留记录并返回 503。
func (s *DownloadService) Delete(ctx context.Context, videoID uuid.UUID) error {
	video, err := s.repo.Get(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return ErrVideoNotFound()
		}
		return fmt.Errorf("load video: %w", err)
	}

	if err := s.store.Delete(ctx, video.ObjectKey); err != nil && !errors.Is(err, gcs.ErrObjectNotFound) {
		s.log.WithContext(ctx).Errorf("delete video object failed: video_id=%s key=%s err=%v", videoID, video.ObjectKey, err)
		return ErrStorageUnavailable("delete video object failed", err)
	}
	if err := s.repo.Delete(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return ErrVideoNotFound()
		}
		return fmt.Errorf("delete video record: %w", err)
	}
	s.log.WithContext(ctx).Infof("video deleted: video_id=%s", videoID)
	return nil
}

func (s *DownloadService) loadLive(ctx context.Context, videoID uuid.UUID, now time.Time) (*po.Video, error) {
	video, err := s.repo.Get(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return nil, ErrVideoNotFound()
		}
		return nil, fmt.Errorf("load video: %w", err)
	}
	if video.Expired(now) {
		return nil, ErrVideoExpired()
	}
	return video, nil
}

// classifyConflict 在条件更新失败后重新读取记录，给出具体原因。
func (s *DownloadService) classifyConflict(ctx context.Context, videoID uuid.UUID) error {
	video, err := s.loadLive(ctx, videoID, s.now())
	if err != nil {
		return err
	}
	if err := checkDownloadable(video); err != nil {
		return err
	}
	// 记录看起来可下载但条件更新失败，只可能是并发修改后又被恢复。
	return ErrForbidden(ReasonAlreadyDownloaded, "video has already been downloaded")
}

func checkDownloadable(video *po.Video) error {
	switch {
	case video.IsDownloaded:
		return ErrForbidden(ReasonAlreadyDownloaded, "video has already been downloaded")
	case !video.IsEnabled:
		return ErrForbidden(ReasonDisabledByAdmin, "video has been disabled by admin")
	case !video.Confirmed():
		return ErrForbidden(ReasonUploadPending, "video upload has not been confirmed")
	}
	return nil
}
