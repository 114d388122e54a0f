// Package gcs 提供与 Google Cloud Storage 交互的基础设施封装。
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/oauth2/google"
)

// URLSigner 负责生成 V4 Signed URL（上传 PUT 与下载 GET）。
type URLSigner struct {
	googleAccessID string
	privateKey     []byte
	now            func() time.Time
	log            *log.Helper
}

// Option 定义可选配置。
type Option func(*URLSigner)

// WithClock 覆盖时间获取函数，便于测试。
func WithClock(clock func() time.Time) Option {
	return func(s *URLSigner) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithServiceAccountKey 允许直接注入访问 ID 与私钥（测试友好）。
func WithServiceAccountKey(accessID string, privateKey []byte) Option {
	return func(s *URLSigner) {
		if accessID != "" {
			s.googleAccessID = accessID
		}
		if len(privateKey) > 0 {
			s.privateKey = append([]byte(nil), privateKey...)
		}
	}
}

// NewURLSigner 创建 URLSigner。未注入私钥时从 credentialsFile 或默认凭据中读取 service account。
func NewURLSigner(ctx context.Context, accessID, credentialsFile string, logger log.Logger, opts ...Option) (*URLSigner, error) {
	signer := &URLSigner{
		googleAccessID: accessID,
		now:            time.Now,
		log:            log.NewHelper(logger),
	}

	for _, opt := range opts {
		opt(signer)
	}

	if len(signer.privateKey) == 0 {
		privKey, detectedAccessID, err := loadServiceAccountKey(ctx, credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("init gcs signer: %w", err)
		}
		signer.privateKey = privKey
		if signer.googleAccessID == "" {
			signer.googleAccessID = detectedAccessID
		} else if detectedAccessID != "" && detectedAccessID != signer.googleAccessID {
			signer.log.WithContext(ctx).Warnf("gcs signer access id mismatch: config=%s credentials=%s", signer.googleAccessID, detectedAccessID)
		}
	}

	if signer.googleAccessID == "" {
		return nil, errors.New("gcs signer: google access id is required")
	}
	if len(signer.privateKey) == 0 {
		return nil, errors.New("gcs signer: private key is required")
	}

	return signer, nil
}

// SignedPutURL 生成单次 PUT 上传所需的 Signed URL。contentType 非空时客户端必须携带相同的 Content-Type。
func (s *URLSigner) SignedPutURL(ctx context.Context, bucket, objectName, contentType string, ttl time.Duration) (string, time.Time, error) {
	return s.sign(ctx, bucket, objectName, ttl, func(opts *storage.SignedURLOptions) {
		opts.Method = http.MethodPut
		opts.ContentType = contentType
	})
}

// SignedGetURL 生成下载用的 Signed URL，并通过 response-content-disposition 提示原始文件名。
func (s *URLSigner) SignedGetURL(ctx context.Context, bucket, objectName, fileName string, ttl time.Duration) (string, time.Time, error) {
	return s.sign(ctx, bucket, objectName, ttl, func(opts *storage.SignedURLOptions) {
		opts.Method = http.MethodGet
		if fileName != "" {
			opts.QueryParameters = url.Values{
				"response-content-disposition": {ContentDisposition(fileName)},
			}
		}
	})
}

func (s *URLSigner) sign(ctx context.Context, bucket, objectName string, ttl time.Duration, customize func(*storage.SignedURLOptions)) (string, time.Time, error) {
	if bucket == "" {
		return "", time.Time{}, errors.New("bucket is required")
	}
	if objectName == "" {
		return "", time.Time{}, errors.New("object name is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be positive")
	}

	expires := s.now().Add(ttl)
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Expires:        expires,
		GoogleAccessID: s.googleAccessID,
		PrivateKey:     s.privateKey,
	}
	customize(opts)

	signed, err := storage.SignedURL(bucket, objectName, opts)
	if err != nil {
		s.log.WithContext(ctx).Errorf("generate signed url failed: method=%s bucket=%s object=%s err=%v", opts.Method, bucket, objectName, err)
		return "", time.Time{}, fmt.Errorf("signed url: %w", err)
	}
	return signed, expires, nil
}

// ContentDisposition 构造 attachment 形式的 Content-Disposition 值。
func ContentDisposition(fileName string) string {
	name := strings.NewReplacer(`"`, "", "\\", "", "\r", "", "\n", "").Replace(fileName)
	return fmt.Sprintf(`attachment; filename="%s"`, name)
}

type serviceAccountKey struct {
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

func loadServiceAccountKey(ctx context.Context, credentialsFile string) ([]byte, string, error) {
	var raw []byte
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, "", fmt.Errorf("read credentials file: %w", err)
		}
		raw = data
	} else {
		creds, err := google.FindDefaultCredentials(ctx, storage.ScopeReadWrite)
		if err != nil {
			return nil, "", fmt.Errorf("find default credentials: %w", err)
		}
		raw = creds.JSON
	}
	if len(raw) == 0 {
		return nil, "", errors.New("service account JSON not found in default credentials")
	}

	var key serviceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, "", fmt.Errorf("parse service account json: %w", err)
	}
	if key.PrivateKey == "" {
		return nil, "", errors.New("service account private key is empty; use a service account JSON credential")
	}
	return []byte(key.PrivateKey), key.ClientEmail, nil
}
