package uploads

import (
	"context"
	"fmt"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"

	"cloud.google.com/go/pubsub/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ProviderSet 暴露上传通知 Runner 的构造器。
var ProviderSet = wire.NewSet(ProvideRunner)

// ClientOptions 根据配置生成 Pub/Sub 客户端选项；配置了模拟器时跳过认证。
func ClientOptions(cfg configloader.PubSub) []option.ClientOption {
	if cfg.EmulatorEndpoint == "" {
		return nil
	}
	return []option.ClientOption{
		option.WithEndpoint(cfg.EmulatorEndpoint),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

// ProvideRunner 创建订阅 GCS 通知的 Runner。未配置订阅时返回 nil Runner。
func ProvideRunner(ctx context.Context, cfg configloader.PubSub, storage configloader.Storage, confirmer Confirmer, logger log.Logger) (*Runner, func(), error) {
	helper := log.NewHelper(logger)
	if !cfg.Enabled() {
		helper.Info("uploads runner disabled: messaging.pubsub not configured")
		return nil, func() {}, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, ClientOptions(cfg)...)
	if err != nil {
		return nil, nil, fmt.Errorf("uploads: create pubsub client: %w", err)
	}
	sub := client.Subscriber(cfg.SubscriptionID)
	if cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstanding
	}

	runner, err := NewRunner(RunnerParams{
		Subscriber: sub,
		Confirmer:  confirmer,
		Bucket:     storage.Bucket,
		Logger:     logger,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	helper.Infof("uploads runner ready: project=%s subscription=%s", cfg.ProjectID, cfg.SubscriptionID)
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("close pubsub client: %v", err)
		}
	}
	return runner, cleanup, nil
}
