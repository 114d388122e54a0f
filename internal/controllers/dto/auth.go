package dto

import (
	"time"

	"github.com/bionicotaku/video-share-service/internal/services"
)

// LoginRequest 对应 POST /api/auth/login。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse 为登录成功的响应。
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	ExpiresIn int64     `json:"expiresIn"`
	Message   string    `json:"message"`
}

// NewLoginResponse 构造登录响应，expiresIn 以秒计。
func NewLoginResponse(token *services.Token, now time.Time) *LoginResponse {
	return &LoginResponse{
		Token:     token.AccessToken,
		ExpiresAt: token.ExpiresAt,
		ExpiresIn: int64(token.ExpiresAt.Sub(now) / time.Second),
		Message:   "Login successful",
	}
}

// VerifyResponse 对应 GET /api/auth/verify。
type VerifyResponse struct {
	Valid bool   `json:"valid"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// NewVerifyResponse 由令牌声明构造响应。
func NewVerifyResponse(claims *services.AdminClaims) *VerifyResponse {
	return &VerifyResponse{Valid: true, Email: claims.Email, Role: claims.Role}
}
