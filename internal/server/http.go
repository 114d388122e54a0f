// Package server 组装对外的 HTTP Server 及其中间件栈。
package server

import (
	stdhttp "net/http"

	"github.com/bionicotaku/video-share-service/internal/controllers"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"
	"github.com/bionicotaku/video-share-service/internal/infrastructure/database"

	"github.com/go-kratos/kratos/v2/encoding"
	"github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProviderSet 暴露 Server 层构造函数。
var ProviderSet = wire.NewSet(NewTelemetry, ProvideMeter, NewHTTPServer)

// NewHTTPServer 创建 HTTP Server，注册 API 路由、健康检查与 /metrics。
func NewHTTPServer(
	c configloader.Server,
	meta configloader.ServiceMetadata,
	telemetry *Telemetry,
	ready database.ReadinessCheck,
	verifier controllers.TokenVerifier,
	auth *controllers.AuthHandler,
	uploads *controllers.UploadHandler,
	videos *controllers.VideoHandler,
	logger log.Logger,
) *http.Server {
	middlewares := []middleware.Middleware{
		recovery.Recovery(),
		tracing.Server(),
	}
	if telemetry != nil {
		middlewares = append(middlewares, kmetrics.Server(
			kmetrics.WithRequests(telemetry.RequestCounter),
			kmetrics.WithSeconds(telemetry.SecondsHistogram),
		))
	}
	middlewares = append(middlewares,
		logging.Server(logger),
		controllers.AdminOnly(verifier),
	)

	opts := []http.ServerOption{
		http.Middleware(middlewares...),
	}
	if c.HTTP.Network != "" {
		opts = append(opts, http.Network(c.HTTP.Network))
	}
	if c.HTTP.Addr != "" {
		opts = append(opts, http.Address(c.HTTP.Addr))
	}
	if c.HTTP.Timeout.Std() > 0 {
		opts = append(opts, http.Timeout(c.HTTP.Timeout.Std()))
	}

	srv := http.NewServer(opts...)

	srv.Handle("/healthz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	}))

	srv.Handle("/readyz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				log.NewHelper(logger).WithContext(r.Context()).Warnf("readiness check failed: %v", err)
				w.WriteHeader(stdhttp.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(stdhttp.StatusOK)
	}))

	health, _ := encoding.GetCodec(json.Name).Marshal(map[string]string{
		"status":  "ok",
		"service": meta.Name,
		"version": meta.Version,
	})
	srv.Handle("/api/health", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(health)
	}))

	if telemetry != nil && telemetry.PrometheusRegistry != nil {
		srv.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	}

	controllers.RegisterRoutes(srv, auth, uploads, videos)
	return srv
}
