package gcs

import (
	"context"
	"fmt"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"google.golang.org/api/option"
)

// ProviderSet 暴露对象存储构造器供 Wire 注入。
var ProviderSet = wire.NewSet(ProvideObjectStore)

// ProvideObjectStore 创建 GCS 客户端、签名器与 ObjectStore，返回关闭客户端的 cleanup。
func ProvideObjectStore(ctx context.Context, cfg configloader.Storage, logger log.Logger) (*ObjectStore, func(), error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create storage client: %w", err)
	}

	signer, err := NewURLSigner(ctx, cfg.SignerServiceAccount, cfg.CredentialsFile, logger)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	store, err := NewObjectStore(client, cfg.Bucket, signer, logger)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	helper := log.NewHelper(logger)
	helper.Infof("gcs object store ready: bucket=%s", cfg.Bucket)
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("close storage client: %v", err)
		}
	}
	return store, cleanup, nil
}
