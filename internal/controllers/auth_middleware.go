package controllers

import (
	"context"
	"strings"

	"github.com/bionicotaku/video-share-service/internal/services"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/transport"
)

const headerAuthorization = "Authorization"

// TokenVerifier 校验 Bearer 令牌。
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*services.AdminClaims, error)
}

type claimsKey struct{}

// NewClaimsContext 将令牌声明写入 Context。
func NewClaimsContext(ctx context.Context, claims *services.AdminClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext 读取 RequireAdmin 注入的令牌声明。
func ClaimsFromContext(ctx context.Context) (*services.AdminClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*services.AdminClaims)
	return claims, ok && claims != nil
}

// RequireAdmin 要求请求携带管理员角色的有效 Bearer 令牌。
// 缺少令牌返回 401 UNAUTHENTICATED，令牌无效返回 401 INVALID_TOKEN，非管理员返回 403 not_admin。
func RequireAdmin(verifier TokenVerifier) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			claims, err := authenticate(ctx, verifier)
			if err != nil {
				return nil, err
			}
			if !claims.IsAdmin() {
				return nil, services.ErrForbidden(services.ReasonNotAdmin, "admin role required")
			}
			return next(NewClaimsContext(ctx, claims), req)
		}
	}
}

// AdminOnly 构造仅作用于管理端 operation 的 RequireAdmin 中间件。
func AdminOnly(verifier TokenVerifier) middleware.Middleware {
	return selector.Server(RequireAdmin(verifier)).
		Match(func(_ context.Context, operation string) bool {
			return IsAdminOperation(operation)
		}).
		Build()
}

func authenticate(ctx context.Context, verifier TokenVerifier) (*services.AdminClaims, error) {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return nil, services.ErrUnauthenticated("missing bearer token")
	}
	token, ok := bearerToken(tr.RequestHeader().Get(headerAuthorization))
	if !ok {
		return nil, services.ErrUnauthenticated("missing bearer token")
	}
	return verifier.VerifyToken(ctx, token)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
