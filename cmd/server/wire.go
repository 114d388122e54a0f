//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"context"

	"github.com/bionicotaku/video-share-service/internal/controllers"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/database"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	loginfra "github.com/bionicotaku/video-share-service/internal/infrastructure/logger"
	"github.com/bionicotaku/video-share-service/internal/repositories"
	"github.com/bionicotaku/video-share-service/internal/server"
	"github.com/bionicotaku/video-share-service/internal/services"
	"github.com/bionicotaku/video-share-service/internal/tasks/reaper"

	"github.com/go-kratos/kratos/v2"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

// wireApp init kratos application.
func wireApp(context.Context, configloader.Params) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		loginfra.ProviderSet,
		database.ProviderSet,
		gcs.ProviderSet,
		repositories.ProviderSet,
		services.ProviderSet,
		controllers.ProviderSet,
		server.ProviderSet,
		reaper.ProviderSet,
		newApp,
	))
}
