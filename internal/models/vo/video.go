// Package vo 定义视图对象（View Objects），由 Service 层返回，经 Controller 转换为 API 响应。
package vo

import (
	"time"

	"github.com/bionicotaku/video-share-service/internal/models/po"
	"github.com/google/uuid"
)

// PublicVideo 是接收方可见的视频投影。
type PublicVideo struct {
	VideoID   uuid.UUID      `json:"videoId"`
	FileName  string         `json:"fileName"`
	FileSize  int64          `json:"fileSize"`
	Status    po.VideoStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// NewPublicVideo 在 now 时刻构造公开投影。
func NewPublicVideo(video *po.Video, now time.Time) *PublicVideo {
	if video == nil {
		return nil
	}
	return &PublicVideo{
		VideoID:   video.VideoID,
		FileName:  video.FileName,
		FileSize:  video.FileSize(),
		Status:    video.StatusAt(now),
		CreatedAt: video.CreatedAt,
		ExpiresAt: video.ExpiresAt,
	}
}

// AdminVideo 是管理端列表使用的完整视图。
type AdminVideo struct {
	VideoID      uuid.UUID      `json:"videoId"`
	FileName     string         `json:"fileName"`
	ContentType  string         `json:"contentType"`
	FileSize     int64          `json:"fileSize"`
	ObjectKey    string         `json:"key"`
	Status       po.VideoStatus `json:"status"`
	IsEnabled    bool           `json:"isEnabled"`
	IsDownloaded bool           `json:"isDownloaded"`
	CreatedAt    time.Time      `json:"createdAt"`
	ExpiresAt    time.Time      `json:"expiresAt"`
	ConfirmedAt  *time.Time     `json:"confirmedAt,omitempty"`
	DownloadedAt *time.Time     `json:"downloadedAt,omitempty"`
}

// NewAdminVideo 在 now 时刻构造管理视图。
func NewAdminVideo(video *po.Video, now time.Time) *AdminVideo {
	if video == nil {
		return nil
	}
	return &AdminVideo{
		VideoID:      video.VideoID,
		FileName:     video.FileName,
		ContentType:  video.ContentType,
		FileSize:     video.FileSize(),
		ObjectKey:    video.ObjectKey,
		Status:       video.StatusAt(now),
		IsEnabled:    video.IsEnabled,
		IsDownloaded: video.IsDownloaded,
		CreatedAt:    video.CreatedAt,
		ExpiresAt:    video.ExpiresAt,
		ConfirmedAt:  video.ConfirmedAt,
		DownloadedAt: video.DownloadedAt,
	}
}

// DownloadLink 描述一次性下载链接。
type DownloadLink struct {
	VideoID   uuid.UUID `json:"videoId"`
	URL       string    `json:"downloadUrl"`
	FileName  string    `json:"fileName"`
	ExpiresAt time.Time `json:"expiresAt"`
}
