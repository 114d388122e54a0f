package services_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bionicotaku/video-share-service/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "correct horse battery staple"
	testJWTSecret     = "0123456789abcdef0123456789abcdef"
)

func newAuthService(t *testing.T, clk *clock) *services.AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	svc, err := services.NewAuthService(services.AuthPolicy{
		AdminEmail:        testAdminEmail,
		AdminPasswordHash: string(hash),
		Secret:            []byte(testJWTSecret),
		TokenTTL:          24 * time.Hour,
		Issuer:            "video-share-service",
	}, log.NewStdLogger(io.Discard), services.WithAuthClock(clk.Now))
	require.NoError(t, err)
	return svc
}

func TestLoginIssuesAdminToken(t *testing.T) {
	clk := newClock()
	svc := newAuthService(t, clk)

	token, err := svc.Login(context.Background(), "  Admin@Example.com ", testAdminPassword)
	require.NoError(t, err)
	require.NotEmpty(t, token.AccessToken)
	require.Equal(t, fixedNow.Add(24*time.Hour), token.ExpiresAt)
	require.Equal(t, testAdminEmail, token.Claims.Email)
	require.True(t, token.Claims.IsAdmin())

	claims, err := svc.VerifyToken(context.Background(), token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testAdminEmail, claims.Email)
	require.Equal(t, services.RoleAdmin, claims.Role)
	require.Equal(t, "video-share-service", claims.Issuer)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t, newClock())

	_, err := svc.Login(context.Background(), testAdminEmail, "wrong")
	requireReason(t, err, 401, services.ReasonInvalidCredentials)

	_, err = svc.Login(context.Background(), "intruder@example.com", testAdminPassword)
	requireReason(t, err, 401, services.ReasonInvalidCredentials)

	_, err = svc.Login(context.Background(), "", "")
	requireReason(t, err, 400, services.ReasonValidationFailed)
}

func TestVerifyTokenRejectsExpiredToken(t *testing.T) {
	clk := newClock()
	svc := newAuthService(t, clk)

	token, err := svc.Login(context.Background(), testAdminEmail, testAdminPassword)
	require.NoError(t, err)

	clk.Advance(24*time.Hour + time.Second)
	_, err = svc.VerifyToken(context.Background(), token.AccessToken)
	requireReason(t, err, 401, services.ReasonInvalidToken)
}

func TestVerifyTokenRejectsForeignSignatures(t *testing.T) {
	svc := newAuthService(t, newClock())
	claims := services.AdminClaims{
		Email: testAdminEmail,
		Role:  services.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "video-share-service",
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret-of-enough-length"))
	require.NoError(t, err)
	_, err = svc.VerifyToken(context.Background(), forged)
	requireReason(t, err, 401, services.ReasonInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.VerifyToken(context.Background(), unsigned)
	requireReason(t, err, 401, services.ReasonInvalidToken)

	_, err = svc.VerifyToken(context.Background(), "not-a-jwt")
	requireReason(t, err, 401, services.ReasonInvalidToken)

	_, err = svc.VerifyToken(context.Background(), "")
	requireReason(t, err, 401, services.ReasonUnauthenticated)
}

func TestVerifyTokenKeepsNonAdminRole(t *testing.T) {
	svc := newAuthService(t, newClock())
	claims := services.AdminClaims{
		Email: "viewer@example.com",
		Role:  "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "video-share-service",
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	got, err := svc.VerifyToken(context.Background(), signed)
	require.NoError(t, err)
	require.False(t, got.IsAdmin())
}
