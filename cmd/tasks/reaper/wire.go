//go:build wireinject
// +build wireinject

// Package main 为 reaper 任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/database"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	loginfra "github.com/bionicotaku/video-share-service/internal/infrastructure/logger"
	"github.com/bionicotaku/video-share-service/internal/repositories"
	"github.com/bionicotaku/video-share-service/internal/server"
	"github.com/bionicotaku/video-share-service/internal/services"
	"github.com/bionicotaku/video-share-service/internal/tasks/reaper"

	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireReaperTask(context.Context, configloader.Params) (*reaperTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		loginfra.ProviderSet,
		database.ProviderSet,
		gcs.ProviderSet,
		repositories.ProviderSet,
		services.ProviderSet,
		server.NewTelemetry,
		server.ProvideMeter,
		reaper.ProviderSet,
		newReaperTaskApp,
	))
}
