package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/video-share-service/internal/models/po"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrVideoNotFound 表示视频记录不存在。
	ErrVideoNotFound = errors.New("video not found")
	// ErrConditionFailed 表示条件更新的前置条件不满足（记录存在但状态已变化）。
	ErrConditionFailed = errors.New("video condition failed")
)

const videoColumns = `video_id, file_name, content_type, declared_size, object_key, actual_size,
	is_enabled, is_downloaded, created_at, expires_at, confirmed_at, downloaded_at, updated_at`

// VideoRepository 封装 videos 表的访问逻辑。
type VideoRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewVideoRepository 构造 VideoRepository。
func NewVideoRepository(db *pgxpool.Pool, logger log.Logger) *VideoRepository {
	return &VideoRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// CreateVideoInput 描述新建视频记录所需的字段。
type CreateVideoInput struct {
	VideoID      uuid.UUID
	FileName     string
	ContentType  string
	DeclaredSize int64
	ObjectKey    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Create 插入一条 pending 状态的视频记录（is_enabled=true, is_downloaded=false）。
func (r *VideoRepository) Create(ctx context.Context, input CreateVideoInput) (*po.Video, error) {
	rows, err := r.db.Query(ctx, `
		insert into videos (video_id, file_name, content_type, declared_size, object_key,
			is_enabled, is_downloaded, created_at, expires_at, updated_at)
		values ($1, $2, $3, $4, $5, true, false, $6, $7, $6)
		returning `+videoColumns,
		input.VideoID, input.FileName, input.ContentType, input.DeclaredSize, input.ObjectKey,
		input.CreatedAt, input.ExpiresAt,
	)
	if err != nil {
		r.log.WithContext(ctx).Errorf("create video failed: video_id=%s err=%v", input.VideoID, err)
		return nil, fmt.Errorf("create video: %w", err)
	}
	video, err := collectVideo(rows)
	if err != nil {
		r.log.WithContext(ctx).Errorf("create video failed: video_id=%s err=%v", input.VideoID, err)
		return nil, fmt.Errorf("create video: %w", err)
	}
	return video, nil
}

// Get 按 video_id 查询记录。
func (r *VideoRepository) Get(ctx context.Context, videoID uuid.UUID) (*po.Video, error) {
	rows, err := r.db.Query(ctx, `select `+videoColumns+` from videos where video_id = $1`, videoID)
	if err != nil {
		r.log.WithContext(ctx).Errorf("get video failed: video_id=%s err=%v", videoID, err)
		return nil, fmt.Errorf("get video: %w", err)
	}
	video, err := collectVideo(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		r.log.WithContext(ctx).Errorf("get video failed: video_id=%s err=%v", videoID, err)
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// List 按创建时间倒序返回全部记录。
func (r *VideoRepository) List(ctx context.Context) ([]*po.Video, error) {
	rows, err := r.db.Query(ctx, `select `+videoColumns+` from videos order by created_at desc`)
	if err != nil {
		r.log.WithContext(ctx).Errorf("list videos failed: err=%v", err)
		return nil, fmt.Errorf("list videos: %w", err)
	}
	videos, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[po.Video])
	if err != nil {
		r.log.WithContext(ctx).Errorf("list videos failed: err=%v", err)
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// MarkConfirmed 回写真实大小并标记上传已确认；重复确认保留首次 confirmed_at。
func (r *VideoRepository) MarkConfirmed(ctx context.Context, videoID uuid.UUID, actualSize int64, at time.Time) (*po.Video, error) {
	rows, err := r.db.Query(ctx, `
		update videos
		set actual_size = $2,
			confirmed_at = coalesce(confirmed_at, $3),
			updated_at = $3
		where video_id = $1
		returning `+videoColumns,
		videoID, actualSize, at,
	)
	return r.collectUpdate(ctx, "mark confirmed", videoID, rows, err, ErrVideoNotFound)
}

// MarkDownloaded 以单条条件更新完成一次性下载的状态迁移：
// 仅当记录已确认、可用、未下载且未过期时置 is_downloaded=true、is_enabled=false。
// 条件不满足时返回 ErrConditionFailed，调用方需重新读取记录判断原因。
func (r *VideoRepository) MarkDownloaded(ctx context.Context, videoID uuid.UUID, at time.Time) (*po.Video, error) {
	rows, err := r.db.Query(ctx, `
		update videos
		set is_downloaded = true,
			is_enabled = false,
			downloaded_at = $2,
			updated_at = $2
		where video_id = $1
			and is_enabled
			and not is_downloaded
			and confirmed_at is not null
			and expires_at > $2
		returning `+videoColumns,
		videoID, at,
	)
	return r.collectUpdate(ctx, "mark downloaded", videoID, rows, err, ErrConditionFailed)
}

// SetEnabled 切换下载开关；重新启用时同时清除 is_downloaded。
func (r *VideoRepository) SetEnabled(ctx context.Context, videoID uuid.UUID, enabled bool, at time.Time) (*po.Video, error) {
	rows, err := r.db.Query(ctx, `
		update videos
		set is_enabled = $2,
			is_downloaded = case when $2 then false else is_downloaded end,
			updated_at = $3
		where video_id = $1
		returning `+videoColumns,
		videoID, enabled, at,
	)
	return r.collectUpdate(ctx, "set enabled", videoID, rows, err, ErrVideoNotFound)
}

// Delete 删除记录。
func (r *VideoRepository) Delete(ctx context.Context, videoID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `delete from videos where video_id = $1`, videoID)
	if err != nil {
		r.log.WithContext(ctx).Errorf("delete video failed: video_id=%s err=%v", videoID, err)
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// ListExpired 返回 expires_at <= cutoff 的记录，limit<=0 表示不限制。
func (r *VideoRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*po.Video, error) {
	query := `select ` + videoColumns + ` from videos where expires_at <= $1 order by expires_at`
	args := []any{cutoff}
	if limit > 0 {
		query += ` limit $2`
		args = append(args, limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.WithContext(ctx).Errorf("list expired videos failed: cutoff=%s err=%v", cutoff.Format(time.RFC3339), err)
		return nil, fmt.Errorf("list expired videos: %w", err)
	}
	videos, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[po.Video])
	if err != nil {
		r.log.WithContext(ctx).Errorf("list expired videos failed: cutoff=%s err=%v", cutoff.Format(time.RFC3339), err)
		return nil, fmt.Errorf("list expired videos: %w", err)
	}
	return videos, nil
}

func (r *VideoRepository) collectUpdate(ctx context.Context, op string, videoID uuid.UUID, rows pgx.Rows, queryErr error, noRows error) (*po.Video, error) {
	if queryErr != nil {
		r.log.WithContext(ctx).Errorf("%s failed: video_id=%s err=%v", op, videoID, queryErr)
		return nil, fmt.Errorf("%s: %w", op, queryErr)
	}
	video, err := collectVideo(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, noRows
		}
		r.log.WithContext(ctx).Errorf("%s failed: video_id=%s err=%v", op, videoID, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return video, nil
}

func collectVideo(rows pgx.Rows) (*po.Video, error) {
	return pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[po.Video])
}
