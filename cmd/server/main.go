// Package main boots the Kratos HTTP entrypoint for the video share service.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/tasks/reaper"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

func newApp(meta configloader.ServiceMetadata, logger log.Logger, hs *http.Server, scheduler *reaper.Scheduler, cfg configloader.Reaper) *kratos.App {
	servers := []transport.Server{hs}
	if cfg.Embedded && scheduler != nil {
		servers = append(servers, scheduler)
	}
	return kratos.New(
		kratos.ID(meta.InstanceID),
		kratos.Name(meta.Name),
		kratos.Version(meta.Version),
		kratos.Metadata(map[string]string{"environment": meta.Environment}),
		kratos.Logger(logger),
		kratos.Server(servers...),
	)
}

func main() {
	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	// Assemble all dependencies (config, logger, pool, storage, handlers) via Wire.
	app, cleanup, err := wireApp(context.Background(), configloader.Params{ConfPath: *confFlag})
	if err != nil {
		log.NewHelper(log.NewStdLogger(os.Stderr)).Errorf("bootstrap failed: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	// Start the application and block until a stop signal is received.
	if err := app.Run(); err != nil {
		panic(err)
	}
}
