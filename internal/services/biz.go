// Package services 编排视频分享的核心用例：上传、一次性下载、过期清理与管理员认证。
package services

import (
	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	"github.com/bionicotaku/video-share-service/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"go.opentelemetry.io/otel/metric"
)

// ProviderSet 暴露 Service 层构造函数及其依赖的接口绑定。
var ProviderSet = wire.NewSet(
	NewUploadPolicy,
	NewDownloadPolicy,
	NewReaperPolicy,
	NewAuthPolicy,
	ProvideUploadService,
	ProvideDownloadService,
	ProvideReaperService,
	ProvideAuthService,
	wire.Bind(new(UploadRepository), new(*repositories.VideoRepository)),
	wire.Bind(new(DownloadRepository), new(*repositories.VideoRepository)),
	wire.Bind(new(ReaperRepository), new(*repositories.VideoRepository)),
	wire.Bind(new(UploadObjectStore), new(*gcs.ObjectStore)),
	wire.Bind(new(DownloadObjectStore), new(*gcs.ObjectStore)),
	wire.Bind(new(ReaperObjectStore), new(*gcs.ObjectStore)),
)

// ProvideUploadService 供 Wire 使用的无可选参数构造。
func ProvideUploadService(repo UploadRepository, store UploadObjectStore, policy UploadPolicy, logger log.Logger) (*UploadService, error) {
	return NewUploadService(repo, store, policy, logger)
}

// ProvideDownloadService 供 Wire 使用，下载指标注册到共享 Meter。
func ProvideDownloadService(repo DownloadRepository, store DownloadObjectStore, policy DownloadPolicy, meter metric.Meter, logger log.Logger) (*DownloadService, error) {
	return NewDownloadService(repo, store, policy, logger, WithDownloadMeter(meter))
}

// ProvideReaperService 供 Wire 使用的无可选参数构造。
func ProvideReaperService(repo ReaperRepository, store ReaperObjectStore, policy ReaperPolicy, logger log.Logger) (*ReaperService, error) {
	return NewReaperService(repo, store, policy, logger)
}

// ProvideAuthService 供 Wire 使用的无可选参数构造。
func ProvideAuthService(policy AuthPolicy, logger log.Logger) (*AuthService, error) {
	return NewAuthService(policy, logger)
}
