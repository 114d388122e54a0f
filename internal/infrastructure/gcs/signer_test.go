package gcs_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	gcs "github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T, now time.Time) *gcs.URLSigner {
	t.Helper()
	keyPEM, accessID := generateTestKey(t)
	signer, err := gcs.NewURLSigner(context.Background(), accessID, "", log.NewStdLogger(io.Discard),
		gcs.WithServiceAccountKey(accessID, keyPEM),
		gcs.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return signer
}

// requireExpiresWithin 校验 X-Goog-Expires；storage 以真实时钟计算该值，只能按区间断言。
func requireExpiresWithin(t *testing.T, query url.Values, ttl time.Duration) {
	t.Helper()
	raw := query.Get("X-Goog-Expires")
	require.NotEmpty(t, raw)
	seconds, err := strconv.Atoi(raw)
	require.NoError(t, err)
	require.LessOrEqual(t, seconds, int(ttl.Seconds()))
	require.GreaterOrEqual(t, seconds, int(ttl.Seconds())-30)
}

func TestSignedPutURL(t *testing.T) {
	fixed := time.Now().UTC().Truncate(time.Second)
	signer := newTestSigner(t, fixed)

	signedURL, expires, err := signer.SignedPutURL(context.Background(), "share-bucket", "videos/abc/clip.mp4", "video/mp4", time.Hour)
	require.NoError(t, err)
	require.True(t, expires.Equal(fixed.Add(time.Hour)))

	parsed, err := url.Parse(signedURL)
	require.NoError(t, err)
	require.NotEmpty(t, parsed.Host)
	require.Contains(t, parsed.Path, "videos/abc/clip.mp4")

	query := parsed.Query()
	requireExpiresWithin(t, query, time.Hour)
	require.Contains(t, strings.ToLower(query.Get("X-Goog-SignedHeaders")), "content-type")
}

func TestSignedGetURL_ContentDisposition(t *testing.T) {
	fixed := time.Now().UTC().Truncate(time.Second)
	signer := newTestSigner(t, fixed)

	signedURL, expires, err := signer.SignedGetURL(context.Background(), "share-bucket", "videos/abc/clip.mp4", "clip.mp4", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, expires.Equal(fixed.Add(10*time.Minute)))

	parsed, err := url.Parse(signedURL)
	require.NoError(t, err)
	query := parsed.Query()
	requireExpiresWithin(t, query, 10*time.Minute)
	require.Equal(t, `attachment; filename="clip.mp4"`, query.Get("response-content-disposition"))
}

func TestSignedURL_RejectsInvalidInput(t *testing.T) {
	signer := newTestSigner(t, time.Now())
	ctx := context.Background()

	_, _, err := signer.SignedPutURL(ctx, "", "key", "", time.Minute)
	require.Error(t, err)
	_, _, err = signer.SignedPutURL(ctx, "bucket", "", "", time.Minute)
	require.Error(t, err)
	_, _, err = signer.SignedGetURL(ctx, "bucket", "key", "a.mp4", 0)
	require.Error(t, err)
}

func TestContentDisposition_StripsQuotes(t *testing.T) {
	require.Equal(t, `attachment; filename="evil.mp4"`, gcs.ContentDisposition("ev\"il.mp4"))
}

func generateTestKey(t *testing.T) ([]byte, string) {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	require.NoError(t, err)
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}
	return pem.EncodeToMemory(block), "test-signer@unit-test.iam.gserviceaccount.com"
}
