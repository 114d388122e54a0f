//go:build wireinject
// +build wireinject

// Package main 为 uploads 任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/database"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	loginfra "github.com/bionicotaku/video-share-service/internal/infrastructure/logger"
	"github.com/bionicotaku/video-share-service/internal/repositories"
	"github.com/bionicotaku/video-share-service/internal/services"
	uploadtasks "github.com/bionicotaku/video-share-service/internal/tasks/uploads"

	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireUploadsTask(context.Context, configloader.Params) (*uploadsTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		loginfra.ProviderSet,
		database.ProviderSet,
		gcs.ProviderSet,
		repositories.ProviderSet,
		services.ProviderSet,
		wire.Bind(new(uploadtasks.Confirmer), new(*services.UploadService)),
		uploadtasks.ProviderSet,
		newUploadsTaskApp,
	))
}
