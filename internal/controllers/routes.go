package controllers

import (
	"context"

	"github.com/go-kratos/kratos/v2/middleware"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// Operation 名称，用于日志、指标与 selector 匹配。
const (
	OperationLogin                   = "/videoshare.v1.Auth/Login"
	OperationVerifyToken             = "/videoshare.v1.Auth/VerifyToken"
	OperationRequestUpload           = "/videoshare.v1.Upload/RequestUpload"
	OperationConfirmUpload           = "/videoshare.v1.Upload/ConfirmUpload"
	OperationRequestPartURL          = "/videoshare.v1.Upload/RequestPartURL"
	OperationCompleteMultipartUpload = "/videoshare.v1.Upload/CompleteMultipartUpload"
	OperationAbortMultipartUpload    = "/videoshare.v1.Upload/AbortMultipartUpload"
	OperationListVideos              = "/videoshare.v1.Video/List"
	OperationGetPublicInfo           = "/videoshare.v1.Video/GetPublicInfo"
	OperationIssueDownloadLink       = "/videoshare.v1.Video/IssueDownloadLink"
	OperationSetEnabled              = "/videoshare.v1.Video/SetEnabled"
	OperationDeleteVideo             = "/videoshare.v1.Video/Delete"
)

var adminOperations = map[string]struct{}{
	OperationVerifyToken:             {},
	OperationRequestUpload:           {},
	OperationConfirmUpload:           {},
	OperationRequestPartURL:          {},
	OperationCompleteMultipartUpload: {},
	OperationAbortMultipartUpload:    {},
	OperationListVideos:              {},
	OperationSetEnabled:              {},
	OperationDeleteVideo:             {},
}

// IsAdminOperation 判断 operation 是否需要管理员令牌。
func IsAdminOperation(operation string) bool {
	_, ok := adminOperations[operation]
	return ok
}

// RegisterRoutes 在 HTTP Server 上注册全部 API 路由。
func RegisterRoutes(srv *khttp.Server, auth *AuthHandler, uploads *UploadHandler, videos *VideoHandler) {
	r := srv.Route("/api")

	r.POST("/auth/login", auth.Login)
	r.GET("/auth/verify", auth.Verify)

	r.POST("/videos/upload-url", uploads.RequestUpload)
	r.POST("/videos/{id}/confirm-upload", uploads.ConfirmUpload)
	r.POST("/videos/{id}/part-url", uploads.RequestPartURL)
	r.POST("/videos/{id}/complete-multipart", uploads.CompleteMultipartUpload)
	r.POST("/videos/{id}/abort-multipart", uploads.AbortMultipartUpload)

	r.GET("/videos", videos.List)
	r.GET("/videos/{id}", videos.GetPublicInfo)
	r.POST("/videos/{id}/download", videos.IssueDownloadLink)
	r.PATCH("/videos/{id}/toggle", videos.SetEnabled)
	r.DELETE("/videos/{id}", videos.Delete)
}

// invoke 设置 operation 后经 Server 中间件链执行 fn，并以 200 JSON 返回结果。
func invoke(c khttp.Context, operation string, req any, fn middleware.Handler) error {
	khttp.SetOperation(c, operation)
	out, err := c.Middleware(fn)(c, req)
	if err != nil {
		return err
	}
	return c.Result(200, out)
}

// handle 将无需请求体的业务函数适配为 middleware.Handler。
func handle(fn func(ctx context.Context) (any, error)) middleware.Handler {
	return func(ctx context.Context, _ any) (any, error) {
		return fn(ctx)
	}
}
