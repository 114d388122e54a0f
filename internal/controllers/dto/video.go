package dto

import (
	"fmt"
	"math"
	"time"

	"github.com/bionicotaku/video-share-service/internal/models/po"
	"github.com/bionicotaku/video-share-service/internal/models/vo"

	"github.com/google/uuid"
)

// ParseVideoID 解析路径中的 videoId。
func ParseVideoID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid videoId: %w", err)
	}
	return id, nil
}

// Video 为管理端视频视图。
type Video = vo.AdminVideo

// NewVideo 在 now 时刻构造管理端视图。
func NewVideo(video *po.Video, now time.Time) *Video {
	return vo.NewAdminVideo(video, now)
}

// ListVideosResponse 对应 GET /api/videos。
type ListVideosResponse struct {
	Videos []*vo.AdminVideo `json:"videos"`
	Count  int              `json:"count"`
}

// NewListVideosResponse 构造列表响应。
func NewListVideosResponse(items []*vo.AdminVideo) *ListVideosResponse {
	if items == nil {
		items = []*vo.AdminVideo{}
	}
	return &ListVideosResponse{Videos: items, Count: len(items)}
}

// PublicVideoResponse 对应 GET /api/videos/{id}。
type PublicVideoResponse struct {
	*vo.PublicVideo
	IsEnabled    bool `json:"isEnabled"`
	IsDownloaded bool `json:"isDownloaded"`
}

// NewPublicVideoResponse 构造公开信息响应；开关字段由派生状态推出。
func NewPublicVideoResponse(info *vo.PublicVideo) *PublicVideoResponse {
	return &PublicVideoResponse{
		PublicVideo:  info,
		IsEnabled:    info.Status == po.VideoStatusAvailable,
		IsDownloaded: info.Status == po.VideoStatusDownloaded,
	}
}

// DownloadResponse 对应 POST /api/videos/{id}/download。
type DownloadResponse struct {
	DownloadURL string    `json:"downloadUrl"`
	FileName    string    `json:"fileName"`
	ExpiresAt   time.Time `json:"expiresAt"`
	ExpiresIn   int64     `json:"expiresIn"`
	Message     string    `json:"message"`
}

// NewDownloadResponse 构造下载响应，expiresIn 以秒计。
func NewDownloadResponse(link *vo.DownloadLink, now time.Time) *DownloadResponse {
	expiresIn := int64(math.Ceil(link.ExpiresAt.Sub(now).Seconds()))
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &DownloadResponse{
		DownloadURL: link.URL,
		FileName:    link.FileName,
		ExpiresAt:   link.ExpiresAt,
		ExpiresIn:   expiresIn,
		Message:     "Download started. This link can only be used once.",
	}
}

// ToggleRequest 对应 PATCH /api/videos/{id}/toggle；enabled 与 isEnabled 二选一。
type ToggleRequest struct {
	Enabled   *bool `json:"enabled"`
	IsEnabled *bool `json:"isEnabled"`
}

// Value 返回请求中的开关值，未提供时 ok 为 false。
func (r *ToggleRequest) Value() (enabled bool, ok bool) {
	switch {
	case r.Enabled != nil:
		return *r.Enabled, true
	case r.IsEnabled != nil:
		return *r.IsEnabled, true
	}
	return false, false
}

// ToggleResponse 为切换后的视频状态。
type ToggleResponse struct {
	VideoID      string         `json:"videoId"`
	IsEnabled    bool           `json:"isEnabled"`
	IsDownloaded bool           `json:"isDownloaded"`
	Status       po.VideoStatus `json:"status"`
	Message      string         `json:"message"`
}

// NewToggleResponse 构造切换响应。
func NewToggleResponse(video *vo.AdminVideo) *ToggleResponse {
	message := "Download disabled"
	if video.IsEnabled {
		message = "Download re-enabled"
	}
	return &ToggleResponse{
		VideoID:      video.VideoID.String(),
		IsEnabled:    video.IsEnabled,
		IsDownloaded: video.IsDownloaded,
		Status:       video.Status,
		Message:      message,
	}
}
