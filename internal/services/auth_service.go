package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin 是唯一的管理员角色。
const RoleAdmin = "admin"

// 邮箱不匹配时仍执行一次 bcrypt 比较，使两种失败路径耗时一致。
var dummyPasswordHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z4Qv2J0r1PZyRrjH7v6aG1nO")

// AdminClaims 为访问令牌中携带的声明。
type AdminClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin 判断声明是否具备管理员角色。
func (c *AdminClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Token 为登录成功后签发的访问令牌。
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	Claims      *AdminClaims
}

// AuthPolicy 认证参数。
type AuthPolicy struct {
	AdminEmail        string
	AdminPasswordHash string
	Secret            []byte
	TokenTTL          time.Duration
	Issuer            string
}

// NewAuthPolicy 从配置构造 AuthPolicy。
func NewAuthPolicy(cfg configloader.Auth) AuthPolicy {
	return AuthPolicy{
		AdminEmail:        cfg.AdminEmail,
		AdminPasswordHash: cfg.AdminPasswordHash,
		Secret:            []byte(cfg.JWTSecret),
		TokenTTL:          cfg.TokenTTL.Std(),
		Issuer:            cfg.Issuer,
	}
}

// AuthOption 定义 AuthService 的可选配置。
type AuthOption func(*AuthService)

// WithAuthClock 覆盖时间获取函数。
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// AuthService 负责管理员登录与 Bearer 令牌校验，自身无状态。
type AuthService struct {
	policy AuthPolicy
	log    *log.Helper
	now    func() time.Time
}

// NewAuthService 创建 AuthService。
func NewAuthService(policy AuthPolicy, logger log.Logger, opts ...AuthOption) (*AuthService, error) {
	switch {
	case strings.TrimSpace(policy.AdminEmail) == "":
		return nil, errors.New("auth service: admin email is required")
	case policy.AdminPasswordHash == "":
		return nil, errors.New("auth service: admin password hash is required")
	case len(policy.Secret) == 0:
		return nil, errors.New("auth service: jwt secret is required")
	case policy.TokenTTL <= 0:
		return nil, errors.New("auth service: token ttl must be positive")
	}
	svc := &AuthService{
		policy: policy,
		log:    log.NewHelper(logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login 校验管理员邮箱与密码，成功后签发 HS256 令牌。
func (s *AuthService) Login(ctx context.Context, email, password string) (*Token, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrValidation("email and password are required")
	}

	emailOK := subtle.ConstantTimeCompare(
		[]byte(normalizeEmail(email)),
		[]byte(normalizeEmail(s.policy.AdminEmail)),
	) == 1

	hash := []byte(s.policy.AdminPasswordHash)
	if !emailOK {
		hash = dummyPasswordHash
	}
	passwordErr := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if !emailOK || passwordErr != nil {
		s.log.WithContext(ctx).Warnf("admin login rejected: email=%s", email)
		return nil, ErrInvalidCredentials()
	}

	now := s.now()
	expiresAt := now.Add(s.policy.TokenTTL)
	claims := &AdminClaims{
		Email: s.policy.AdminEmail,
		Role:  RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.policy.Issuer,
			Subject:   s.policy.AdminEmail,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.policy.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	s.log.WithContext(ctx).Infof("admin login succeeded: email=%s", claims.Email)
	return &Token{AccessToken: signed, ExpiresAt: expiresAt, Claims: claims}, nil
}

// VerifyToken 校验签名、算法与有效期，返回令牌声明。
func (s *AuthService) VerifyToken(_ context.Context, token string) (*AdminClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated("missing bearer token")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.policy.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.policy.Issuer))
	}

	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.policy.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrInvalidToken("token has expired").WithCause(err)
		}
		return nil, ErrInvalidToken("invalid token").WithCause(err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken("invalid token")
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
