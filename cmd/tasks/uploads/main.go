// Package main 提供上传通知 Runner 的独立进程入口，消费 GCS OBJECT_FINALIZE 事件并确认上传。
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	uploadrunner "github.com/bionicotaku/video-share-service/internal/tasks/uploads"

	"github.com/go-kratos/kratos/v2/log"

	_ "go.uber.org/automaxprocs"
)

type uploadsTaskApp struct {
	Runner *uploadrunner.Runner
	Logger log.Logger
}

func newUploadsTaskApp(logger log.Logger, runner *uploadrunner.Runner) *uploadsTaskApp {
	return &uploadsTaskApp{Runner: runner, Logger: logger}
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	params := configloader.Params{ConfPath: *confFlag}
	app, cleanup, err := wireUploadsTask(ctx, params)
	if err != nil {
		log.NewHelper(log.NewStdLogger(os.Stderr)).Errorf("bootstrap failed: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	helper := log.NewHelper(app.Logger)

	if app.Runner == nil {
		helper.Warn("uploads runner disabled (missing messaging.pubsub configuration)")
		return
	}

	helper.Info("starting uploads notification runner")

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("uploads runner stopped unexpectedly: %v", err)
		return
	}

	helper.Info("uploads runner stopped")
}
