package controllers

import (
	"context"
	"strings"

	"github.com/bionicotaku/video-share-service/internal/controllers/dto"
	"github.com/bionicotaku/video-share-service/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// AuthUsecase 定义管理员认证能力。
type AuthUsecase interface {
	TokenVerifier
	Login(ctx context.Context, email, password string) (*services.Token, error)
}

// AuthHandler 处理登录与令牌校验请求。
type AuthHandler struct {
	*BaseHandler
	svc AuthUsecase
}

// NewAuthHandler 构造 AuthHandler。
func NewAuthHandler(base *BaseHandler, svc AuthUsecase) *AuthHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &AuthHandler{BaseHandler: base, svc: svc}
}

// Login 处理 POST /api/auth/login。
func (h *AuthHandler) Login(c khttp.Context) error {
	in := &dto.LoginRequest{}
	return invoke(c, OperationLogin, in, func(ctx context.Context, _ any) (any, error) {
		if err := bindBody(c, in); err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Email) == "" || in.Password == "" {
			return nil, services.ErrValidation("email and password are required")
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeDefault)
		defer cancel()

		token, err := h.svc.Login(ctx, in.Email, in.Password)
		if err != nil {
			return nil, toAPIError(err, "login failed")
		}
		return dto.NewLoginResponse(token, h.Now()), nil
	})
}

// Verify 处理 GET /api/auth/verify；令牌已由 RequireAdmin 校验。
func (h *AuthHandler) Verify(c khttp.Context) error {
	return invoke(c, OperationVerifyToken, nil, handle(func(ctx context.Context) (any, error) {
		claims, ok := ClaimsFromContext(ctx)
		if !ok {
			return nil, services.ErrUnauthenticated("missing bearer token")
		}
		return dto.NewVerifyResponse(claims), nil
	}))
}
