package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	"github.com/bionicotaku/video-share-service/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const mib = int64(1) << 20

func testUploadPolicy() services.UploadPolicy {
	return services.UploadPolicy{
		Expiry:             15 * time.Hour,
		MaxFileSize:        20 << 30,
		MultipartThreshold: 100 * mib,
		PartSize:           100 * mib,
		UploadURLTTL:       time.Hour,
		PartURLTTL:         time.Hour,
		ConfirmAttempts:    5,
		ConfirmBackoff:     time.Second,
	}
}

// waitRecorder 记录确认重试的等待时长而不真正休眠。
type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) Wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waits = append(w.waits, d)
	return ctx.Err()
}

func (w *waitRecorder) Waits() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.waits...)
}

func newUploadService(t *testing.T, repo *memRepo, store *fakeStore, clk *clock, waits *waitRecorder) *services.UploadService {
	t.Helper()
	svc, err := services.NewUploadService(repo, store, testUploadPolicy(), log.NewStdLogger(io.Discard),
		services.WithUploadClock(clk.Now),
		services.WithConfirmWait(waits.Wait),
	)
	require.NoError(t, err)
	return svc
}

func requireReason(t *testing.T, err error, code int, reason string) {
	t.Helper()
	require.Error(t, err)
	kerr := kerrors.FromError(err)
	require.Equal(t, code, int(kerr.Code), "unexpected code for %v", err)
	require.Equal(t, reason, kerr.Reason)
}

func TestNewUploadServiceValidatesDependencies(t *testing.T) {
	_, err := services.NewUploadService(nil, newFakeStore(), testUploadPolicy(), log.DefaultLogger)
	require.Error(t, err)

	_, err = services.NewUploadService(newMemRepo(), nil, testUploadPolicy(), log.DefaultLogger)
	require.Error(t, err)

	policy := testUploadPolicy()
	policy.ConfirmAttempts = 0
	_, err = services.NewUploadService(newMemRepo(), newFakeStore(), policy, log.DefaultLogger)
	require.Error(t, err)
}

func TestRequestUploadSingleShotBelowThreshold(t *testing.T) {
	repo, store, clk := newMemRepo(), newFakeStore(), newClock()
	svc := newUploadService(t, repo, store, clk, &waitRecorder{})

	res, err := svc.RequestUpload(context.Background(), services.RequestUploadInput{
		FileName:     "holiday.mp4",
		ContentType:  "video/mp4",
		DeclaredSize: 50 * mib,
	})
	require.NoError(t, err)
	require.False(t, res.Multipart)
	require.NotEmpty(t, res.UploadURL)
	require.Empty(t, res.UploadID)
	require.Equal(t, fixedNow.Add(time.Hour), res.UploadURLExpiresAt)

	video := res.Video
	require.NotNil(t, video)
	require.Equal(t, "videos/"+video.VideoID.String()+"/holiday.mp4", res.Key)
	require.Equal(t, res.Key, video.ObjectKey)
	require.True(t, video.IsEnabled)
	require.False(t, video.IsDownloaded)
	require.False(t, video.Confirmed())
	require.Equal(t, fixedNow.Add(15*time.Hour), video.ExpiresAt)
	require.True(t, repo.has(video.VideoID))
}

func TestRequestUploadMultipartAtThreshold(t *testing.T) {
	repo, store, clk := newMemRepo(), newFakeStore(), newClock()
	svc := newUploadService(t, repo, store, clk, &waitRecorder{})

	res, err := svc.RequestUpload(context.Background(), services.RequestUploadInput{
		FileName:     "big.mov",
		ContentType:  "video/quicktime",
		DeclaredSize: 100 * mib,
	})
	require.NoError(t, err)
	require.True(t, res.Multipart)
	require.Empty(t, res.UploadURL)
	require.NotEmpty(t, res.UploadID)
	require.Equal(t, 100*mib, res.PartSize)
	require.True(t, repo.has(res.Video.VideoID))
	require.Equal(t, 1, store.sessionCount())
}

func TestRequestUploadValidation(t *testing.T) {
	cases := []struct {
		name  string
		input services.RequestUploadInput
	}{
		{"too large", services.RequestUploadInput{FileName: "a.mp4", ContentType: "video/mp4", DeclaredSize: 20<<30 + 1}},
		{"zero size", services.RequestUploadInput{FileName: "a.mp4", ContentType: "video/mp4", DeclaredSize: 0}},
		{"empty name", services.RequestUploadInput{FileName: "  ", ContentType: "video/mp4", DeclaredSize: mib}},
		{"directory name", services.RequestUploadInput{FileName: "../", ContentType: "video/mp4", DeclaredSize: mib}},
		{"non video", services.RequestUploadInput{FileName: "a.txt", ContentType: "text/plain", DeclaredSize: mib}},
		{"missing type", services.RequestUploadInput{FileName: "a.mp4", DeclaredSize: mib}},
		{"long name", services.RequestUploadInput{FileName: strings.Repeat("x", 256), ContentType: "video/mp4", DeclaredSize: mib}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, store := newMemRepo(), newFakeStore()
			svc := newUploadService(t, repo, store, newClock(), &waitRecorder{})

			_, err := svc.RequestUpload(context.Background(), tc.input)
			requireReason(t, err, 400, services.ReasonValidationFailed)

			videos, listErr := repo.List(context.Background())
			require.NoError(t, listErr)
			require.Empty(t, videos)
			require.Zero(t, store.sessionCount())
		})
	}
}

func TestRequestUploadSanitizesFileName(t *testing.T) {
	svc := newUploadService(t, newMemRepo(), newFakeStore(), newClock(), &waitRecorder{})

	res, err := svc.RequestUpload(context.Background(), services.RequestUploadInput{
		FileName:     `C:\Users\admin\..\clip.mp4`,
		ContentType:  "application/octet-stream",
		DeclaredSize: mib,
	})
	require.NoError(t, err)
	require.Equal(t, "clip.mp4", res.Video.FileName)
	require.True(t, strings.HasSuffix(res.Key, "/clip.mp4"))
}

func TestRequestUploadStorageFailure(t *testing.T) {
	repo, store := newMemRepo(), newFakeStore()
	store.signErr = errBackend
	svc := newUploadService(t, repo, store, newClock(), &waitRecorder{})

	_, err := svc.RequestUpload(context.Background(), services.RequestUploadInput{
		FileName: "a.mp4", ContentType: "video/mp4", DeclaredSize: mib,
	})
	requireReason(t, err, 503, services.ReasonStorageUnavailable)
	require.True(t, errors.Is(err, errBackend))
}

func TestRequestUploadAbortsSessionWhenRecordFails(t *testing.T) {
	repo, store := newMemRepo(), newFakeStore()
	repo.createErr = errBackend
	svc := newUploadService(t, repo, store, newClock(), &waitRecorder{})

	_, err := svc.RequestUpload(context.Background(), services.RequestUploadInput{
		FileName: "a.mp4", ContentType: "video/mp4", DeclaredSize: 200 * mib,
	})
	require.ErrorIs(t, err, errBackend)
	require.Zero(t, store.sessionCount())
}

func TestConfirmUploadFindsObjectImmediately(t *testing.T) {
	repo, store, clk, waits := newMemRepo(), newFakeStore(), newClock(), &waitRecorder{}
	svc := newUploadService(t, repo, store, clk, waits)
	ctx := context.Background()

	res, err := svc.RequestUpload(ctx, services.RequestUploadInput{FileName: "a.mp4", ContentType: "video/mp4", DeclaredSize: 50 * mib})
	require.NoError(t, err)
	store.putObject(res.Key, 50*mib-7)

	video, err := svc.ConfirmUpload(ctx, res.Video.VideoID)
	require.NoError(t, err)
	require.True(t, video.Confirmed())
	require.Equal(t, 50*mib-7, video.FileSize())
	require.Empty(t, waits.Waits())
}

func TestConfirmUploadRetriesUntilVisible(t *testing.T) {
	repo, store, clk, waits := newMemRepo(), newFakeStore(), newClock(), &waitRecorder{}
	svc := newUploadService(t, repo, store, clk, waits)
	ctx := context.Background()

	res, err := svc.RequestUpload(ctx, services.RequestUploadInput{FileName: "a.mp4", ContentType: "video/mp4", DeclaredSize: mib})
	require.NoError(t, err)
	store.putObject(res.Key, mib)
	store.visibleAfter[res.Key] = 2

	video, err := svc.ConfirmUpload(ctx, res.Video.VideoID)
	require.NoError(t, err)
	require.True(t, video.Confirmed())
	require.Equal(t, []time.Duration{time.Second, time.Second}, waits.Waits())
}

func TestConfirmUploadGivesUpAfterFiveAttempts(t *testing.T) {
	repo, store, clk, waits := newMemRepo(), newFakeStore(), newClock(), &waitRecorder{}
	svc := newUploadService(t, repo, store, clk, waits)
	ctx := context.Background()

	res, err := svc.RequestUpload(ctx, services.RequestUploadInput{FileName: "a.mp4", ContentType: "video/mp4", DeclaredSize: mib})
	require.NoError(t, err)

	_, err = svc.ConfirmUpload(ctx, res.Video.VideoID)
	requireReason(t, err, 400, services.ReasonUploadNotFound)
	require.Equal(t, 5, store.existsCalls[res.Key])
	require.Len(t, waits.Waits(), 4)
	for _, d := range waits.Waits() {
		require.Equal(t, time.Second, d)
	}

	video, err := repo.Get(ctx, res.Video.VideoID)
	require.NoError(t, err)
	require.False(t, video.Confirmed())
}

func TestConfirmUploadStopsOnCancelledContext(t *testing.T) {
	repo, store := newMemRepo(), newFakeStore()
	svc := newUploadService(t, repo, store, newClock(), &waitRecorder{})

	res, err := svc.RequestUpload(context.Background(), services.RequestUploadInput{FileName: "a.mp4", ContentType: "video/mp4", DeclaredSize: mib})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.ConfirmUpload(ctx, res.Video.VideoID)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, store.existsCalls[res.Key])
}

func TestConfirmUploadErrors(t *testing.T) {
	t.Run("unknown video", func(t *testing.T) {
		svc := newUploadService(t, newMemRepo(), newFakeStore(), newClock(), &waitRecorder{})
		_, err := svc.ConfirmUpload(context.Background(), uuid.New())
		requireReason(t, err, 404, services.ReasonVideoNotFound)
	})

	t.Run("storage failure is not retried", func(t *testing.T) {
		repo, store, waits := newMemRepo(), newFakeStore(), &waitRecorder{}
		svc := newUploadService(t, repo, store, newClock(), waits)
		res, err := svc.RequestUpload(context.Background(), services.RequestUploadInput{FileName: "a.mp4", ContentType: "video/mp4", DeclaredSize: mib})
		require.NoError(t, err)

		store.existsErr = errBackend
		_, err = svc.ConfirmUpload(context.Background(), res.Video.VideoID)
		requireReason(t, err, 503, services.ReasonStorageUnavailable)
		require.Empty(t, waits.Waits())
	})
}

func TestMultipartUploadAbortLeavesNothing(t *testing.T) {
	repo, store, clk := newMemRepo(), newFakeStore(), newClock()
	svc := newUploadService(t, repo, store, clk, &waitRecorder{})
	ctx := context.Background()

	res, err := svc.RequestUpload(ctx, services.RequestUploadInput{FileName: "movie.mp4", ContentType: "video/mp4", DeclaredSize: 500 * mib})
	require.NoError(t, err)
	require.True(t, res.Multipart)

	parts := int((500*mib + res.PartSize - 1) / res.PartSize)
	require.Equal(t, 5, parts)
	for part := 1; part <= parts; part++ {
		url, err := svc.RequestPartURL(ctx, res.Video.VideoID, services.RequestPartURLInput{
			UploadID: res.UploadID, PartNumber: part, Key: res.Key,
		})
		require.NoError(t, err)
		require.NotEmpty(t, url.URL)
		require.Equal(t, part, url.PartNumber)
		if part < parts {
			store.uploadPart(res.UploadID, part, "etag")
		}
	}

	err = svc.AbortMultipartUpload(ctx, res.Video.VideoID, services.AbortMultipartInput{Key: res.Key, UploadID: res.UploadID})
	require.NoError(t, err)
	require.False(t, repo.has(res.Video.VideoID))
	require.False(t, store.hasObject(res.Key))
	require.Zero(t, store.sessionCount())

	err = svc.AbortMultipartUpload(ctx, res.Video.VideoID, services.AbortMultipartInput{Key: res.Key, UploadID: res.UploadID})
	requireReason(t, err, 404, services.ReasonVideoNotFound)
}

func TestMultipartUploadCompleteAndConfirm(t *testing.T) {
	repo, store, clk := newMemRepo(), newFakeStore(), newClock()
	svc := newUploadService(t, repo, store, clk, &waitRecorder{})
	ctx := context.Background()

	res, err := svc.RequestUpload(ctx, services.RequestUploadInput{FileName: "movie.mp4", ContentType: "video/mp4", DeclaredSize: 300 * mib})
	require.NoError(t, err)

	var parts []gcs.CompletedPart
	for part := 1; part <= 3; part++ {
		etag := fmt.Sprintf("etag-%d", part)
		store.uploadPart(res.UploadID, part, etag)
		parts = append(parts, gcs.CompletedPart{PartNumber: part, ETag: etag})
	}

	_, err = svc.CompleteMultipartUpload(ctx, res.Video.VideoID, services.CompleteMultipartInput{Key: res.Key, UploadID: res.UploadID, Parts: parts})
	require.NoError(t, err)
	require.True(t, store.hasObject(res.Key))

	video, err := svc.ConfirmUpload(ctx, res.Video.VideoID)
	require.NoError(t, err)
	require.Equal(t, 300*mib, video.FileSize())
}

func TestCompleteMultipartRejectsGaps(t *testing.T) {
	repo, store := newMemRepo(), newFakeStore()
	svc := newUploadService(t, repo, store, newClock(), &waitRecorder{})
	ctx := context.Background()

	res, err := svc.RequestUpload(ctx, services.RequestUploadInput{FileName: "movie.mp4", ContentType: "video/mp4", DeclaredSize: 300 * mib})
	require.NoError(t, err)
	store.uploadPart(res.UploadID, 1, "e1")
	store.uploadPart(res.UploadID, 3, "e3")

	_, err = svc.CompleteMultipartUpload(ctx, res.Video.VideoID, services.CompleteMultipartInput{
		Key:      res.Key,
		UploadID: res.UploadID,
		Parts:    []gcs.CompletedPart{{PartNumber: 1, ETag: "e1"}, {PartNumber: 3, ETag: "e3"}},
	})
	requireReason(t, err, 400, services.ReasonIncompleteUpload)
	require.False(t, store.hasObject(res.Key))

	_, err = svc.CompleteMultipartUpload(ctx, res.Video.VideoID, services.CompleteMultipartInput{Key: res.Key, UploadID: res.UploadID})
	requireReason(t, err, 400, services.ReasonValidationFailed)
}

func TestRequestPartURLValidation(t *testing.T) {
	repo, store := newMemRepo(), newFakeStore()
	svc := newUploadService(t, repo, store, newClock(), &waitRecorder{})
	ctx := context.Background()

	res, err := svc.RequestUpload(ctx, services.RequestUploadInput{FileName: "movie.mp4", ContentType: "video/mp4", DeclaredSize: 300 * mib})
	require.NoError(t, err)
	id := res.Video.VideoID

	_, err = svc.RequestPartURL(ctx, id, services.RequestPartURLInput{UploadID: res.UploadID, PartNumber: 0})
	requireReason(t, err, 400, services.ReasonValidationFailed)

	_, err = svc.RequestPartURL(ctx, id, services.RequestPartURLInput{UploadID: res.UploadID, PartNumber: gcs.MaxParts + 1})
	requireReason(t, err, 400, services.ReasonValidationFailed)

	_, err = svc.RequestPartURL(ctx, id, services.RequestPartURLInput{UploadID: res.UploadID, PartNumber: 1, Key: "videos/other/file.mp4"})
	requireReason(t, err, 400, services.ReasonValidationFailed)

	_, err = svc.RequestPartURL(ctx, id, services.RequestPartURLInput{UploadID: uuid.NewString(), PartNumber: 1})
	requireReason(t, err, 404, services.ReasonUploadSessionNotFound)

	_, err = svc.RequestPartURL(ctx, uuid.New(), services.RequestPartURLInput{UploadID: res.UploadID, PartNumber: 1})
	requireReason(t, err, 404, services.ReasonVideoNotFound)
}

func TestVideoIDFromObjectKey(t *testing.T) {
	id := uuid.New()

	got, ok := services.VideoIDFromObjectKey(services.ObjectKey(id, "clip.mp4"))
	require.True(t, ok)
	require.Equal(t, id, got)

	for _, key := range []string{
		"clip.mp4",
		"videos/not-a-uuid/clip.mp4",
		"videos/" + id.String(),
		"videos/" + id.String() + "/",
		"videos/" + id.String() + "/clip.mp4.multipart/x/part-00001",
	} {
		_, ok := services.VideoIDFromObjectKey(key)
		require.False(t, ok, key)
	}
}
