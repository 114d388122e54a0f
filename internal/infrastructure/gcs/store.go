package gcs

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
)

var (
	// ErrObjectNotFound 表示对象不存在。
	ErrObjectNotFound = errors.New("object not found")
	// ErrIncompleteUpload 表示分片缺失、乱序或校验不一致。
	ErrIncompleteUpload = errors.New("incomplete multipart upload")
	// ErrUploadSessionNotFound 表示分片上传会话不存在或已结束。
	ErrUploadSessionNotFound = errors.New("multipart upload session not found")
)

const (
	// MaxParts 是单个分片会话允许的最大分片号。
	MaxParts = 10000

	maxComposeSources  = 32
	composeConcurrency = 4
	statConcurrency    = 8
	multipartSuffix    = ".multipart/"
	sessionManifest    = ".session"
)

// ObjectInfo 描述对象的元信息。
type ObjectInfo struct {
	Size        int64
	ContentType string
	ModifiedAt  time.Time
	ETag        string
}

// CompletedPart 描述客户端上报的已上传分片。
type CompletedPart struct {
	PartNumber int
	ETag       string
}

type sessionDoc struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// ObjectStore 基于 GCS 实现单次上传、分片上传（compose）、签名 URL 与对象管理。
//
// 分片会话保存在对象存储内：
//
//	<key>.multipart/<uploadID>/.session     会话清单
//	<key>.multipart/<uploadID>/part-00001   分片对象
type ObjectStore struct {
	client *storage.Client
	bucket string
	signer *URLSigner
	log    *log.Helper
	now    func() time.Time
}

// NewObjectStore 构造 ObjectStore。
func NewObjectStore(client *storage.Client, bucket string, signer *URLSigner, logger log.Logger) (*ObjectStore, error) {
	switch {
	case client == nil:
		return nil, errors.New("object store: storage client is required")
	case bucket == "":
		return nil, errors.New("object store: bucket is required")
	case signer == nil:
		return nil, errors.New("object store: signer is required")
	}
	return &ObjectStore{
		client: client,
		bucket: bucket,
		signer: signer,
		log:    log.NewHelper(logger),
		now:    time.Now,
	}, nil
}

// SignedPutURL 返回单次上传的 Signed URL。
func (s *ObjectStore) SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error) {
	return s.signer.SignedPutURL(ctx, s.bucket, key, contentType, ttl)
}

// SignedGetURL 返回下载的 Signed URL。
func (s *ObjectStore) SignedGetURL(ctx context.Context, key, fileName string, ttl time.Duration) (string, time.Time, error) {
	return s.signer.SignedGetURL(ctx, s.bucket, key, fileName, ttl)
}

// InitiateMultipart 创建分片上传会话并返回 uploadID。
func (s *ObjectStore) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	if key == "" {
		return "", errors.New("object key is required")
	}
	uploadID := uuid.NewString()
	doc, err := json.Marshal(sessionDoc{Key: key, ContentType: contentType, CreatedAt: s.now().UTC()})
	if err != nil {
		return "", fmt.Errorf("encode session manifest: %w", err)
	}

	obj := s.object(sessionObjectName(key, uploadID)).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(doc); err != nil {
		_ = w.Close()
		s.log.WithContext(ctx).Errorf("write multipart manifest failed: key=%s upload_id=%s err=%v", key, uploadID, err)
		return "", fmt.Errorf("write session manifest: %w", err)
	}
	if err := w.Close(); err != nil {
		s.log.WithContext(ctx).Errorf("close multipart manifest failed: key=%s upload_id=%s err=%v", key, uploadID, err)
		return "", fmt.Errorf("write session manifest: %w", err)
	}
	return uploadID, nil
}

// SignedPartPutURL 返回指定分片的上传 Signed URL，要求会话仍然存在。
func (s *ObjectStore) SignedPartPutURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (string, time.Time, error) {
	if partNumber < 1 || partNumber > MaxParts {
		return "", time.Time{}, fmt.Errorf("part number %d out of range 1-%d", partNumber, MaxParts)
	}
	if _, err := s.loadSession(ctx, key, uploadID); err != nil {
		return "", time.Time{}, err
	}
	return s.signer.SignedPutURL(ctx, s.bucket, partObjectName(key, uploadID, partNumber), "", ttl)
}

// CompleteMultipart 校验分片并按序合并为 key 处的单一对象，随后清理会话。
func (s *ObjectStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	session, err := s.loadSession(ctx, key, uploadID)
	if err != nil {
		return err
	}
	if err := validatePartOrder(parts); err != nil {
		return err
	}

	sources := make([]string, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statConcurrency)
	for i, part := range parts {
		name := partObjectName(key, uploadID, part.PartNumber)
		sources[i] = name
		g.Go(func() error {
			attrs, err := s.object(name).Attrs(gctx)
			if errors.Is(err, storage.ErrObjectNotExist) {
				return fmt.Errorf("%w: part %d missing", ErrIncompleteUpload, part.PartNumber)
			}
			if err != nil {
				return fmt.Errorf("stat part %d: %w", part.PartNumber, err)
			}
			if !etagMatches(part.ETag, attrs.Etag, attrs.MD5) {
				return fmt.Errorf("%w: part %d checksum mismatch", ErrIncompleteUpload, part.PartNumber)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrIncompleteUpload) {
			s.log.WithContext(ctx).Errorf("verify multipart parts failed: key=%s upload_id=%s err=%v", key, uploadID, err)
		}
		return err
	}

	if err := s.composeAll(ctx, sessionPrefix(key, uploadID), sources, key, session.ContentType); err != nil {
		s.log.WithContext(ctx).Errorf("compose multipart failed: key=%s upload_id=%s parts=%d err=%v", key, uploadID, len(parts), err)
		return fmt.Errorf("compose parts: %w", err)
	}

	if err := s.deletePrefix(ctx, sessionPrefix(key, uploadID)); err != nil {
		s.log.WithContext(ctx).Warnf("cleanup multipart session failed: key=%s upload_id=%s err=%v", key, uploadID, err)
	}
	return nil
}

// AbortMultipart 释放会话：删除全部分片、清单以及 key 处可能已存在的对象。
func (s *ObjectStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if _, err := uuid.Parse(uploadID); err != nil {
		return fmt.Errorf("%w: invalid upload id", ErrUploadSessionNotFound)
	}
	if err := s.deletePrefix(ctx, sessionPrefix(key, uploadID)); err != nil {
		s.log.WithContext(ctx).Errorf("abort multipart failed: key=%s upload_id=%s err=%v", key, uploadID, err)
		return fmt.Errorf("delete multipart session: %w", err)
	}
	if err := s.deleteObject(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	return nil
}

// Exists 判断对象是否存在。
func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		s.log.WithContext(ctx).Errorf("object exists check failed: key=%s err=%v", key, err)
		return false, fmt.Errorf("object attrs: %w", err)
	}
	return true, nil
}

// Stat 返回对象元信息。
func (s *ObjectStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	attrs, err := s.object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		s.log.WithContext(ctx).Errorf("object stat failed: key=%s err=%v", key, err)
		return nil, fmt.Errorf("object attrs: %w", err)
	}
	return &ObjectInfo{
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		ModifiedAt:  attrs.Updated,
		ETag:        attrs.Etag,
	}, nil
}

// Delete 删除对象并清理遗留的分片会话。对象不存在时返回 ErrObjectNotFound。
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	if err := s.deletePrefix(ctx, key+multipartSuffix); err != nil {
		s.log.WithContext(ctx).Warnf("purge multipart leftovers failed: key=%s err=%v", key, err)
	}
	return s.deleteObject(ctx, key)
}

func (s *ObjectStore) deleteObject(ctx context.Context, key string) error {
	err := s.object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	if err != nil {
		s.log.WithContext(ctx).Errorf("delete object failed: key=%s err=%v", key, err)
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *ObjectStore) loadSession(ctx context.Context, key, uploadID string) (*sessionDoc, error) {
	if _, err := uuid.Parse(uploadID); err != nil {
		return nil, fmt.Errorf("%w: invalid upload id", ErrUploadSessionNotFound)
	}
	r, err := s.object(sessionObjectName(key, uploadID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrUploadSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open session manifest: %w", err)
	}
	defer r.Close()

	var doc sessionDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode session manifest: %w", err)
	}
	if doc.Key != key {
		return nil, ErrUploadSessionNotFound
	}
	return &doc, nil
}

// composeAll 以 32 路为上限逐层合并，直至得到目标对象。
func (s *ObjectStore) composeAll(ctx context.Context, prefix string, sources []string, dst, contentType string) error {
	for level := 0; len(sources) > maxComposeSources; level++ {
		batches := chunkNames(sources, maxComposeSources)
		next := make([]string, len(batches))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(composeConcurrency)
		for i, batch := range batches {
			next[i] = fmt.Sprintf("%scompose-%02d-%05d", prefix, level, i)
			target := next[i]
			g.Go(func() error {
				return s.compose(gctx, batch, target, "")
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		sources = next
	}
	return s.compose(ctx, sources, dst, contentType)
}

func (s *ObjectStore) compose(ctx context.Context, sources []string, dst, contentType string) error {
	handles := make([]*storage.ObjectHandle, len(sources))
	for i, name := range sources {
		handles[i] = s.object(name)
	}
	composer := s.object(dst).ComposerFrom(handles...)
	if contentType != "" {
		composer.ContentType = contentType
	}
	if _, err := composer.Run(ctx); err != nil {
		return fmt.Errorf("compose %s: %w", dst, err)
	}
	return nil
}

func (s *ObjectStore) deletePrefix(ctx context.Context, prefix string) error {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		if err := s.object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("delete %s: %w", attrs.Name, err)
		}
	}
}

func (s *ObjectStore) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(name)
}

func sessionPrefix(key, uploadID string) string {
	return key + multipartSuffix + uploadID + "/"
}

func sessionObjectName(key, uploadID string) string {
	return sessionPrefix(key, uploadID) + sessionManifest
}

func partObjectName(key, uploadID string, partNumber int) string {
	return fmt.Sprintf("%spart-%05d", sessionPrefix(key, uploadID), partNumber)
}

// IsMultipartObject 判断对象名是否属于分片会话的内部对象。
func IsMultipartObject(name string) bool {
	return strings.Contains(name, multipartSuffix)
}

// validatePartOrder 要求分片号从 1 开始连续递增。
func validatePartOrder(parts []CompletedPart) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: no parts", ErrIncompleteUpload)
	}
	if len(parts) > MaxParts {
		return fmt.Errorf("%w: too many parts (%d)", ErrIncompleteUpload, len(parts))
	}
	for i, part := range parts {
		if part.PartNumber != i+1 {
			if sort.SliceIsSorted(parts, func(a, b int) bool { return parts[a].PartNumber < parts[b].PartNumber }) {
				return fmt.Errorf("%w: part %d missing", ErrIncompleteUpload, i+1)
			}
			return fmt.Errorf("%w: parts out of order at position %d", ErrIncompleteUpload, i+1)
		}
	}
	return nil
}

// etagMatches 接受 GCS ETag 或 XML API 返回的 MD5 十六进制值。
func etagMatches(expected, etag string, md5 []byte) bool {
	tag := strings.Trim(strings.TrimSpace(expected), `"`)
	if tag == "" {
		return false
	}
	if etag != "" && tag == strings.Trim(etag, `"`) {
		return true
	}
	return len(md5) > 0 && strings.EqualFold(tag, hex.EncodeToString(md5))
}

func chunkNames(names []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(names); start += size {
		end := start + size
		if end > len(names) {
			end = len(names)
		}
		out = append(out, names[start:end])
	}
	return out
}
