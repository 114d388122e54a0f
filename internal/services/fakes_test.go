package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	"github.com/bionicotaku/video-share-service/internal/models/po"
	"github.com/bionicotaku/video-share-service/internal/repositories"

	"github.com/google/uuid"
)

// memRepo 以内存实现 VideoRepository 的条件更新语义。
type memRepo struct {
	mu     sync.Mutex
	videos map[uuid.UUID]po.Video

	createErr error
	deleteErr map[uuid.UUID]error
}

func newMemRepo() *memRepo {
	return &memRepo{videos: make(map[uuid.UUID]po.Video), deleteErr: make(map[uuid.UUID]error)}
}

func (r *memRepo) Create(_ context.Context, input repositories.CreateVideoInput) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, ok := r.videos[input.VideoID]; ok {
		return nil, fmt.Errorf("duplicate video %s", input.VideoID)
	}
	video := po.Video{
		VideoID:      input.VideoID,
		FileName:     input.FileName,
		ContentType:  input.ContentType,
		DeclaredSize: input.DeclaredSize,
		ObjectKey:    input.ObjectKey,
		IsEnabled:    true,
		CreatedAt:    input.CreatedAt,
		ExpiresAt:    input.ExpiresAt,
		UpdatedAt:    input.CreatedAt,
	}
	r.videos[video.VideoID] = video
	return &video, nil
}

func (r *memRepo) Get(_ context.Context, id uuid.UUID) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	video, ok := r.videos[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	return &video, nil
}

func (r *memRepo) List(_ context.Context) ([]*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*po.Video, 0, len(r.videos))
	for _, v := range r.videos {
		video := v
		out = append(out, &video)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) MarkConfirmed(_ context.Context, id uuid.UUID, size int64, at time.Time) (*po.Video, error) {
	return r.update(id, repositories.ErrVideoNotFound, nil, func(v *po.Video) {
		v.ActualSize = &size
		if v.ConfirmedAt == nil {
			confirmed := at
			v.ConfirmedAt = &confirmed
		}
		v.UpdatedAt = at
	})
}

// MarkDownloaded 的条件与 repositories.VideoRepository.MarkDownloaded 的 where 子句一一对应，修改时需同步。
func (r *memRepo) MarkDownloaded(_ context.Context, id uuid.UUID, at time.Time) (*po.Video, error) {
	return r.update(id, repositories.ErrConditionFailed, func(v *po.Video) bool {
		return v.IsEnabled && !v.IsDownloaded && v.ConfirmedAt != nil && v.ExpiresAt.After(at)
	}, func(v *po.Video) {
		v.IsDownloaded = true
		v.IsEnabled = false
		downloaded := at
		v.DownloadedAt = &downloaded
		v.UpdatedAt = at
	})
}

func (r *memRepo) SetEnabled(_ context.Context, id uuid.UUID, enabled bool, at time.Time) (*po.Video, error) {
	return r.update(id, repositories.ErrVideoNotFound, nil, func(v *po.Video) {
		v.IsEnabled = enabled
		if enabled {
			v.IsDownloaded = false
		}
		v.UpdatedAt = at
	})
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := r.videos[id]; !ok {
		return repositories.ErrVideoNotFound
	}
	delete(r.videos, id)
	return nil
}

func (r *memRepo) ListExpired(_ context.Context, cutoff time.Time, limit int) ([]*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*po.Video
	for _, v := range r.videos {
		if !v.ExpiresAt.After(cutoff) {
			video := v
			out = append(out, &video)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) put(video po.Video) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[video.VideoID] = video
}

func (r *memRepo) has(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.videos[id]
	return ok
}

func (r *memRepo) update(id uuid.UUID, noRows error, cond func(*po.Video) bool, mutate func(*po.Video)) (*po.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	video, ok := r.videos[id]
	if !ok {
		return nil, noRows
	}
	if cond != nil && !cond(&video) {
		return nil, noRows
	}
	mutate(&video)
	r.videos[id] = video
	return &video, nil
}

type fakeSession struct {
	key   string
	parts map[int]string
}

// fakeStore 以内存模拟对象存储；visibleAfter 控制对象在第几次 Exists 后可见。
type fakeStore struct {
	mu       sync.Mutex
	objects  map[string]int64
	sessions map[string]*fakeSession

	visibleAfter map[string]int
	existsCalls  map[string]int

	existsErr error
	signErr   error
	deleteErr map[string]error
	signedGet int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:      make(map[string]int64),
		sessions:     make(map[string]*fakeSession),
		visibleAfter: make(map[string]int),
		existsCalls:  make(map[string]int),
		deleteErr:    make(map[string]error),
	}
}

func (s *fakeStore) SignedPutURL(_ context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error) {
	if s.signErr != nil {
		return "", time.Time{}, s.signErr
	}
	return "https://storage.test/put/" + key + "?ct=" + contentType, fixedNow.Add(ttl), nil
}

func (s *fakeStore) SignedGetURL(_ context.Context, key, fileName string, ttl time.Duration) (string, time.Time, error) {
	if s.signErr != nil {
		return "", time.Time{}, s.signErr
	}
	s.mu.Lock()
	s.signedGet++
	s.mu.Unlock()
	return "https://storage.test/get/" + key + "?name=" + fileName, fixedNow.Add(ttl), nil
}

func (s *fakeStore) InitiateMultipart(_ context.Context, key, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.sessions[id] = &fakeSession{key: key, parts: make(map[int]string)}
	return id, nil
}

func (s *fakeStore) SignedPartPutURL(_ context.Context, key, uploadID string, partNumber int, ttl time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[uploadID]
	if !ok || session.key != key {
		return "", time.Time{}, gcs.ErrUploadSessionNotFound
	}
	return fmt.Sprintf("https://storage.test/part/%s/%d", uploadID, partNumber), fixedNow.Add(ttl), nil
}

// uploadPart 模拟客户端通过签名 URL 上传分片。
func (s *fakeStore) uploadPart(uploadID string, partNumber int, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[uploadID].parts[partNumber] = etag
}

func (s *fakeStore) CompleteMultipart(_ context.Context, key, uploadID string, parts []gcs.CompletedPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[uploadID]
	if !ok || session.key != key {
		return gcs.ErrUploadSessionNotFound
	}
	for i, part := range parts {
		if part.PartNumber != i+1 {
			return fmt.Errorf("%w: part %d out of order", gcs.ErrIncompleteUpload, part.PartNumber)
		}
		etag, ok := session.parts[part.PartNumber]
		if !ok || (part.ETag != "" && part.ETag != etag) {
			return fmt.Errorf("%w: part %d missing or mismatched", gcs.ErrIncompleteUpload, part.PartNumber)
		}
	}
	s.objects[key] = int64(len(parts)) * 100 << 20
	delete(s.sessions, uploadID)
	return nil
}

func (s *fakeStore) AbortMultipart(_ context.Context, key, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, uploadID)
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	s.existsCalls[key]++
	if _, ok := s.objects[key]; !ok {
		return false, nil
	}
	return s.existsCalls[key] > s.visibleAfter[key], nil
}

func (s *fakeStore) Stat(_ context.Context, key string) (*gcs.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.objects[key]
	if !ok {
		return nil, gcs.ErrObjectNotFound
	}
	return &gcs.ObjectInfo{Size: size, ContentType: "video/mp4", ModifiedAt: fixedNow}, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[key]; err != nil {
		return err
	}
	if _, ok := s.objects[key]; !ok {
		return gcs.ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) putObject(key string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = size
}

func (s *fakeStore) hasObject(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *fakeStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

var errBackend = errors.New("backend unavailable")

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// clock 为可推进的测试时钟。
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: fixedNow} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
