package controllers

import (
	"github.com/bionicotaku/video-share-service/internal/services"

	"github.com/google/wire"
)

// ProviderSet 暴露 Handler 构造函数及用例接口绑定。
var ProviderSet = wire.NewSet(
	NewHandlerTimeouts,
	NewBaseHandler,
	NewAuthHandler,
	NewUploadHandler,
	NewVideoHandler,
	wire.Bind(new(AuthUsecase), new(*services.AuthService)),
	wire.Bind(new(TokenVerifier), new(*services.AuthService)),
	wire.Bind(new(UploadUsecase), new(*services.UploadService)),
	wire.Bind(new(VideoUsecase), new(*services.DownloadService)),
)
