package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	"github.com/bionicotaku/video-share-service/internal/models/po"
	"github.com/bionicotaku/video-share-service/internal/repositories"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const (
	objectKeyPrefix = "videos/"
	maxFileNameLen  = 255
)

// UploadObjectStore 定义上传编排所需的对象存储能力。
type UploadObjectStore interface {
	SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error)
	InitiateMultipart(ctx context.Context, key, contentType string) (string, error)
	SignedPartPutURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (string, time.Time, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []gcs.CompletedPart) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
	Exists(ctx context.Context, key string) (bool, error)
	Stat(ctx context.Context, key string) (*gcs.ObjectInfo, error)
}

// UploadRepository 抽象上传编排涉及的元数据操作，便于测试。
type UploadRepository interface {
	Create(ctx context.Context, input repositories.CreateVideoInput) (*po.Video, error)
	Get(ctx context.Context, videoID uuid.UUID) (*po.Video, error)
	MarkConfirmed(ctx context.Context, videoID uuid.UUID, actualSize int64, at time.Time) (*po.Video, error)
	Delete(ctx context.Context, videoID uuid.UUID) error
}

// UploadPolicy 聚合上传相关的策略参数。
type UploadPolicy struct {
	Expiry             time.Duration
	MaxFileSize        int64
	MultipartThreshold int64
	PartSize           int64
	UploadURLTTL       time.Duration
	PartURLTTL         time.Duration
	ConfirmAttempts    int
	ConfirmBackoff     time.Duration
}

// NewUploadPolicy 从配置构造 UploadPolicy。
func NewUploadPolicy(video configloader.Video, storage configloader.Storage) UploadPolicy {
	return UploadPolicy{
		Expiry:             video.Expiry(),
		MaxFileSize:        video.MaxFileSize(),
		MultipartThreshold: video.MultipartThreshold(),
		PartSize:           video.MultipartPartSize(),
		UploadURLTTL:       storage.UploadURLTTL.Std(),
		PartURLTTL:         storage.PartURLTTL.Std(),
		ConfirmAttempts:    video.ConfirmAttempts,
		ConfirmBackoff:     video.ConfirmBackoff.Std(),
	}
}

// RequestUploadInput 为 RequestUpload 的输入。
type RequestUploadInput struct {
	FileName     string
	ContentType  string
	DeclaredSize int64
}

// RequestUploadResult 为 RequestUpload 的输出：单次上传返回 UploadURL，分片上传返回 UploadID。
type RequestUploadResult struct {
	Video              *po.Video
	Key                string
	UploadURL          string
	UploadURLExpiresAt time.Time
	Multipart          bool
	UploadID           string
	PartSize           int64
}

// RequestPartURLInput 为 RequestPartURL 的输入。
type RequestPartURLInput struct {
	UploadID   string
	PartNumber int
	Key        string
}

// PartURLResult 为单个分片的上传地址。
type PartURLResult struct {
	PartNumber int
	URL        string
	ExpiresAt  time.Time
}

// CompleteMultipartInput 为 CompleteMultipartUpload 的输入。
type CompleteMultipartInput struct {
	Key      string
	UploadID string
	Parts    []gcs.CompletedPart
}

// AbortMultipartInput 为 AbortMultipartUpload 的输入。
type AbortMultipartInput struct {
	Key      string
	UploadID string
}

// UploadOption 定义 UploadService 的可选配置。
type UploadOption func(*UploadService)

// WithUploadClock 覆盖时间获取函数。
func WithUploadClock(now func() time.Time) UploadOption {
	return func(s *UploadService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConfirmWait 覆盖确认重试之间的等待函数。
func WithConfirmWait(wait func(ctx context.Context, d time.Duration) error) UploadOption {
	return func(s *UploadService) {
		if wait != nil {
			s.wait = wait
		}
	}
}

// UploadService 编排视频记录创建与单次/分片上传流程。
type UploadService struct {
	repo   UploadRepository
	store  UploadObjectStore
	policy UploadPolicy
	log    *log.Helper
	now    func() time.Time
	wait   func(ctx context.Context, d time.Duration) error
}

// NewUploadService 创建 UploadService。
func NewUploadService(repo UploadRepository, store UploadObjectStore, policy UploadPolicy, logger log.Logger, opts ...UploadOption) (*UploadService, error) {
	switch {
	case repo == nil:
		return nil, errors.New("upload service: repository is required")
	case store == nil:
		return nil, errors.New("upload service: object store is required")
	case policy.Expiry <= 0:
		return nil, errors.New("upload service: expiry must be positive")
	case policy.MaxFileSize <= 0:
		return nil, errors.New("upload service: max file size must be positive")
	case policy.MultipartThreshold <= 0:
		return nil, errors.New("upload service: multipart threshold must be positive")
	case policy.UploadURLTTL <= 0 || policy.PartURLTTL <= 0:
		return nil, errors.New("upload service: url ttl must be positive")
	case policy.ConfirmAttempts <= 0:
		return nil, errors.New("upload service: confirm attempts must be positive")
	}

	svc := &UploadService{
		repo:   repo,
		store:  store,
		policy: policy,
		log:    log.NewHelper(logger),
		now:    time.Now,
		wait:   sleepContext,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RequestUpload 校验声明的文件，创建 pending 记录并返回上传路径。
// 小于分片阈值时返回单次 PUT 的签名 URL，否则初始化分片会话。
func (s *UploadService) RequestUpload(ctx context.Context, input RequestUploadInput) (*RequestUploadResult, error) {
	fileName, contentType, err := s.validateUpload(input)
	if err != nil {
		return nil, err
	}

	videoID := uuid.New()
	key := ObjectKey(videoID, fileName)
	now := s.now().UTC()
	result := &RequestUploadResult{Key: key}

	if input.DeclaredSize < s.policy.MultipartThreshold {
		url, expiresAt, err := s.store.SignedPutURL(ctx, key, contentType, s.policy.UploadURLTTL)
		if err != nil {
			return nil, ErrStorageUnavailable("sign upload url failed", err)
		}
		result.UploadURL = url
		result.UploadURLExpiresAt = expiresAt
	} else {
		uploadID, err := s.store.InitiateMultipart(ctx, key, contentType)
		if err != nil {
			return nil, ErrStorageUnavailable("initiate multipart upload failed", err)
		}
		result.Multipart = true
		result.UploadID = uploadID
		result.PartSize = s.policy.PartSize
	}

	video, err := s.repo.Create(ctx, repositories.CreateVideoInput{
		VideoID:      videoID,
		FileName:     fileName,
		ContentType:  contentType,
		DeclaredSize: input.DeclaredSize,
		ObjectKey:    key,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.policy.Expiry),
	})
	if err != nil {
		if result.Multipart {
			if abortErr := s.store.AbortMultipart(ctx, key, result.UploadID); abortErr != nil {
				s.log.WithContext(ctx).Warnf("abort orphan multipart failed: key=%s upload_id=%s err=%v", key, result.UploadID, abortErr)
			}
		}
		return nil, fmt.Errorf("persist video record: %w", err)
	}
	result.Video = video

	s.log.WithContext(ctx).Infof("upload requested: video_id=%s size=%d multipart=%v", videoID, input.DeclaredSize, result.Multipart)
	return result, nil
}

// RequestPartURL 为打开中的分片会话返回指定分片的签名 URL。
func (s *UploadService) RequestPartURL(ctx context.Context, videoID uuid.UUID, input RequestPartURLInput) (*PartURLResult, error) {
	if strings.TrimSpace(input.UploadID) == "" {
		return nil, ErrValidation("uploadId is required")
	}
	if input.PartNumber < 1 || input.PartNumber > gcs.MaxParts {
		return nil, ErrValidation(fmt.Sprintf("partNumber must be within 1-%d", gcs.MaxParts))
	}
	video, err := s.loadForKey(ctx, videoID, input.Key)
	if err != nil {
		return nil, err
	}

	url, expiresAt, err := s.store.SignedPartPutURL(ctx, video.ObjectKey, input.UploadID, input.PartNumber, s.policy.PartURLTTL)
	if err != nil {
		return nil, mapMultipartError("sign part url failed", err)
	}
	return &PartURLResult{PartNumber: input.PartNumber, URL: url, ExpiresAt: expiresAt}, nil
}

// CompleteMultipartUpload 将已上传分片合并为最终对象。
func (s *UploadService) CompleteMultipartUpload(ctx context.Context, videoID uuid.UUID, input CompleteMultipartInput) (*po.Video, error) {
	if strings.TrimSpace(input.UploadID) == "" {
		return nil, ErrValidation("uploadId is required")
	}
	if len(input.Parts) == 0 {
		return nil, ErrValidation("parts are required")
	}
	video, err := s.loadForKey(ctx, videoID, input.Key)
	if err != nil {
		return nil, err
	}

	if err := s.store.CompleteMultipart(ctx, video.ObjectKey, input.UploadID, input.Parts); err != nil {
		return nil, mapMultipartError("complete multipart upload failed", err)
	}
	s.log.WithContext(ctx).Infof("multipart completed: video_id=%s parts=%d", videoID, len(input.Parts))
	return video, nil
}

// AbortMultipartUpload 释放分片会话并删除视频记录，不留下记录与残余对象。
func (s *UploadService) AbortMultipartUpload(ctx context.Context, videoID uuid.UUID, input AbortMultipartInput) error {
	if strings.TrimSpace(input.UploadID) == "" {
		return ErrValidation("uploadId is required")
	}
	video, err := s.loadForKey(ctx, videoID, input.Key)
	if err != nil {
		return err
	}

	if err := s.store.AbortMultipart(ctx, video.ObjectKey, input.UploadID); err != nil {
		return mapMultipartError("abort multipart upload failed", err)
	}
	if err := s.repo.Delete(ctx, videoID); err != nil && !errors.Is(err, repositories.ErrVideoNotFound) {
		return fmt.Errorf("delete video record: %w", err)
	}
	s.log.WithContext(ctx).Infof("multipart aborted: video_id=%s", videoID)
	return nil
}

// ConfirmUpload 以有限重试确认对象已可见，回写真实大小并将记录标记为已确认。
// 对象在 ConfirmAttempts 次检查后仍不存在时返回 UploadNotFound。
func (s *UploadService) ConfirmUpload(ctx context.Context, videoID uuid.UUID) (*po.Video, error) {
	video, err := s.getVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	found := false
	for attempt := 1; attempt <= s.policy.ConfirmAttempts; attempt++ {
		exists, err := s.store.Exists(ctx, video.ObjectKey)
		if err != nil {
			return nil, ErrStorageUnavailable("check uploaded object failed", err)
		}
		if exists {
			found = true
			break
		}
		if attempt < s.policy.ConfirmAttempts {
			s.log.WithContext(ctx).Debugf("uploaded object not visible yet: video_id=%s attempt=%d", videoID, attempt)
			if err := s.wait(ctx, s.policy.ConfirmBackoff); err != nil {
				return nil, err
			}
		}
	}
	if !found {
		s.log.WithContext(ctx).Warnf("confirm upload failed: video_id=%s key=%s attempts=%d", videoID, video.ObjectKey, s.policy.ConfirmAttempts)
		return nil, ErrUploadNotFound()
	}

	info, err := s.store.Stat(ctx, video.ObjectKey)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotFound) {
			return nil, ErrUploadNotFound()
		}
		return nil, ErrStorageUnavailable("stat uploaded object failed", err)
	}

	confirmed, err := s.repo.MarkConfirmed(ctx, videoID, info.Size, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return nil, ErrVideoNotFound()
		}
		return nil, fmt.Errorf("mark upload confirmed: %w", err)
	}
	s.log.WithContext(ctx).Infof("upload confirmed: video_id=%s size=%d", videoID, info.Size)
	return confirmed, nil
}

func (s *UploadService) validateUpload(input RequestUploadInput) (string, string, error) {
	fileName := SanitizeFileName(input.FileName)
	if fileName == "" {
		return "", "", ErrValidation("fileName is required")
	}
	if len(fileName) > maxFileNameLen {
		return "", "", ErrValidation(fmt.Sprintf("fileName must be at most %d bytes", maxFileNameLen))
	}
	contentType := strings.ToLower(strings.TrimSpace(input.ContentType))
	if contentType == "" {
		return "", "", ErrValidation("contentType is required")
	}
	if !strings.HasPrefix(contentType, "video/") && contentType != "application/octet-stream" {
		return "", "", ErrValidation(fmt.Sprintf("unsupported contentType: %s", input.ContentType))
	}
	if input.DeclaredSize <= 0 {
		return "", "", ErrValidation("fileSize must be positive")
	}
	if input.DeclaredSize > s.policy.MaxFileSize {
		return "", "", ErrValidation(fmt.Sprintf("fileSize exceeds maximum of %d bytes", s.policy.MaxFileSize))
	}
	return fileName, contentType, nil
}

func (s *UploadService) getVideo(ctx context.Context, videoID uuid.UUID) (*po.Video, error) {
	video, err := s.repo.Get(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return nil, ErrVideoNotFound()
		}
		return nil, fmt.Errorf("load video: %w", err)
	}
	return video, nil
}

// loadForKey 加载记录并校验客户端回传的 key（为空时跳过）与记录一致。
func (s *UploadService) loadForKey(ctx context.Context, videoID uuid.UUID, key string) (*po.Video, error) {
	video, err := s.getVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if key = strings.TrimSpace(key); key != "" && key != video.ObjectKey {
		return nil, ErrValidation("key does not match video")
	}
	return video, nil
}

func mapMultipartError(message string, err error) *kerrors.Error {
	switch {
	case errors.Is(err, gcs.ErrUploadSessionNotFound):
		return ErrUploadSessionNotFound().WithCause(err)
	case errors.Is(err, gcs.ErrIncompleteUpload):
		return ErrIncompleteUpload(err.Error()).WithCause(err)
	default:
		return ErrStorageUnavailable(message, err)
	}
}

// ObjectKey 返回视频在对象存储中的 key：videos/<videoId>/<fileName>。
func ObjectKey(videoID uuid.UUID, fileName string) string {
	return objectKeyPrefix + videoID.String() + "/" + fileName
}

// VideoIDFromObjectKey 从对象 key 解析 videoId，非视频对象返回 false。
func VideoIDFromObjectKey(key string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(key, objectKeyPrefix)
	if !ok {
		return uuid.Nil, false
	}
	idPart, fileName, ok := strings.Cut(rest, "/")
	if !ok || fileName == "" || strings.Contains(fileName, "/") {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// SanitizeFileName 去除目录部分与控制字符。
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
