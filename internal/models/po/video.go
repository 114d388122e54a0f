// Package po 定义面向持久化的数据对象（Persistent Objects），由 Repository 层使用。
// PO 对象映射数据库表结构，不直接暴露给上层业务逻辑。
package po

import (
	"time"

	"github.com/google/uuid"
)

// VideoStatus 表示对外展示的派生状态，不落库。
type VideoStatus string

// 派生状态常量定义
const (
	VideoStatusPending    VideoStatus = "pending"    // 记录已创建，上传尚未确认
	VideoStatusAvailable  VideoStatus = "available"  // 可下载
	VideoStatusDownloaded VideoStatus = "downloaded" // 已被下载一次
	VideoStatusDisabled   VideoStatus = "disabled"   // 管理员禁用，未被下载
	VideoStatusExpired    VideoStatus = "expired"    // 已过期，等待清理
)

// Video 表示 videos 表的数据库实体，每个上传的视频一条。
type Video struct {
	VideoID      uuid.UUID  `db:"video_id"`      // 主键，创建后不可变
	FileName     string     `db:"file_name"`     // 原始文件名（已去除路径）
	ContentType  string     `db:"content_type"`  // 上传时声明的 MIME
	DeclaredSize int64      `db:"declared_size"` // 客户端声明的大小（字节）
	ObjectKey    string     `db:"object_key"`    // 对象存储 key，创建后不可变
	ActualSize   *int64     `db:"actual_size"`   // 确认上传后回写的真实大小
	IsEnabled    bool       `db:"is_enabled"`    // 是否允许下载
	IsDownloaded bool       `db:"is_downloaded"` // 是否已被下载
	CreatedAt    time.Time  `db:"created_at"`
	ExpiresAt    time.Time  `db:"expires_at"`    // created_at + 配置的保留时长
	ConfirmedAt  *time.Time `db:"confirmed_at"`  // 上传确认时间，为空表示 pending
	DownloadedAt *time.Time `db:"downloaded_at"` // 最近一次下载时间
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Confirmed 判断上传是否已确认。
func (v *Video) Confirmed() bool {
	return v != nil && v.ConfirmedAt != nil
}

// Expired 判断在 now 时刻记录是否已过期（now >= expires_at）。
func (v *Video) Expired(now time.Time) bool {
	return v != nil && !now.Before(v.ExpiresAt)
}

// StatusAt 返回 now 时刻的派生状态。
func (v *Video) StatusAt(now time.Time) VideoStatus {
	switch {
	case v.Expired(now):
		return VideoStatusExpired
	case !v.Confirmed():
		return VideoStatusPending
	case v.IsDownloaded:
		return VideoStatusDownloaded
	case !v.IsEnabled:
		return VideoStatusDisabled
	default:
		return VideoStatusAvailable
	}
}

// FileSize 优先返回确认后的真实大小。
func (v *Video) FileSize() int64 {
	if v.ActualSize != nil {
		return *v.ActualSize
	}
	return v.DeclaredSize
}
