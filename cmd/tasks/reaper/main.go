// Package main 提供过期清理任务的独立进程入口；-once 执行一轮后退出，适合外部定时器触发。
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/tasks/reaper"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"

	_ "go.uber.org/automaxprocs"
)

type reaperTaskApp struct {
	Scheduler *reaper.Scheduler
	Meta      configloader.ServiceMetadata
	Logger    log.Logger
}

func newReaperTaskApp(meta configloader.ServiceMetadata, logger log.Logger, scheduler *reaper.Scheduler) *reaperTaskApp {
	return &reaperTaskApp{Scheduler: scheduler, Meta: meta, Logger: logger}
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	onceFlag := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	app, cleanup, err := wireReaperTask(ctx, configloader.Params{ConfPath: *confFlag})
	if err != nil {
		log.NewHelper(log.NewStdLogger(os.Stderr)).Errorf("bootstrap failed: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	helper := log.NewHelper(app.Logger)

	if *onceFlag {
		if code := runOnce(ctx, app, helper); code != 0 {
			cleanup()
			os.Exit(code)
		}
		return
	}

	k := kratos.New(
		kratos.ID(app.Meta.InstanceID),
		kratos.Name(app.Meta.Name+"-reaper"),
		kratos.Version(app.Meta.Version),
		kratos.Logger(app.Logger),
		kratos.Server(app.Scheduler),
	)
	if err := k.Run(); err != nil {
		helper.Errorf("reaper stopped unexpectedly: %v", err)
		os.Exit(1)
	}
}

// runOnce 执行一轮清理；扫描失败返回 1，存在单条失败返回 2。
func runOnce(ctx context.Context, app *reaperTaskApp, helper *log.Helper) int {
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := app.Scheduler.RunOnce(runCtx)
	if err != nil {
		helper.Errorf("reaper sweep failed: %v", err)
		return 1
	}
	if len(report.Errors) > 0 {
		return 2
	}
	return 0
}
