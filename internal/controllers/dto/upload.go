// Package dto 定义 HTTP 接口的请求/响应结构，以及与 Service 层输入输出之间的转换。
package dto

import (
	"strings"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	"github.com/bionicotaku/video-share-service/internal/services"
)

// RequestUploadRequest 对应 POST /api/videos/upload-url。
type RequestUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	FileSize    int64  `json:"fileSize"`
}

// ToInput 转换为服务层输入。
func (r *RequestUploadRequest) ToInput() services.RequestUploadInput {
	return services.RequestUploadInput{
		FileName:     strings.TrimSpace(r.FileName),
		ContentType:  strings.TrimSpace(r.ContentType),
		DeclaredSize: r.FileSize,
	}
}

// RequestUploadResponse 为上传初始化结果；单次上传携带 uploadUrl，分片上传携带 uploadId。
type RequestUploadResponse struct {
	VideoID            string     `json:"videoId"`
	Key                string     `json:"key"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	Multipart          bool       `json:"multipart"`
	UploadURL          string     `json:"uploadUrl,omitempty"`
	UploadURLExpiresAt *time.Time `json:"uploadUrlExpiresAt,omitempty"`
	UploadID           string     `json:"uploadId,omitempty"`
	PartSize           int64      `json:"partSize,omitempty"`
	Video              *Video     `json:"video"`
}

// NewRequestUploadResponse 由服务层结果构造响应。
func NewRequestUploadResponse(res *services.RequestUploadResult, now time.Time) *RequestUploadResponse {
	resp := &RequestUploadResponse{
		VideoID:   res.Video.VideoID.String(),
		Key:       res.Key,
		ExpiresAt: res.Video.ExpiresAt,
		Multipart: res.Multipart,
		UploadURL: res.UploadURL,
		UploadID:  res.UploadID,
		PartSize:  res.PartSize,
		Video:     NewVideo(res.Video, now),
	}
	if !res.Multipart {
		expiresAt := res.UploadURLExpiresAt
		resp.UploadURLExpiresAt = &expiresAt
	}
	return resp
}

// PartURLRequest 对应 POST /api/videos/{id}/part-url。
type PartURLRequest struct {
	UploadID   string `json:"uploadId"`
	PartNumber int    `json:"partNumber"`
	Key        string `json:"key"`
}

// ToInput 转换为服务层输入。
func (r *PartURLRequest) ToInput() services.RequestPartURLInput {
	return services.RequestPartURLInput{
		UploadID:   strings.TrimSpace(r.UploadID),
		PartNumber: r.PartNumber,
		Key:        strings.TrimSpace(r.Key),
	}
}

// PartURLResponse 为单个分片的上传地址。
type PartURLResponse struct {
	UploadURL  string    `json:"uploadUrl"`
	PartNumber int       `json:"partNumber"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// NewPartURLResponse 由服务层结果构造响应。
func NewPartURLResponse(res *services.PartURLResult) *PartURLResponse {
	return &PartURLResponse{UploadURL: res.URL, PartNumber: res.PartNumber, ExpiresAt: res.ExpiresAt}
}

// CompletedPart 为客户端上报的已上传分片。
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// CompleteMultipartRequest 对应 POST /api/videos/{id}/complete-multipart。
type CompleteMultipartRequest struct {
	UploadID string          `json:"uploadId"`
	Key      string          `json:"key"`
	Parts    []CompletedPart `json:"parts"`
}

// ToInput 转换为服务层输入。
func (r *CompleteMultipartRequest) ToInput() services.CompleteMultipartInput {
	parts := make([]gcs.CompletedPart, 0, len(r.Parts))
	for _, p := range r.Parts {
		parts = append(parts, gcs.CompletedPart{PartNumber: p.PartNumber, ETag: strings.TrimSpace(p.ETag)})
	}
	return services.CompleteMultipartInput{
		Key:      strings.TrimSpace(r.Key),
		UploadID: strings.TrimSpace(r.UploadID),
		Parts:    parts,
	}
}

// AbortMultipartRequest 对应 POST /api/videos/{id}/abort-multipart。
type AbortMultipartRequest struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

// ToInput 转换为服务层输入。
func (r *AbortMultipartRequest) ToInput() services.AbortMultipartInput {
	return services.AbortMultipartInput{
		Key:      strings.TrimSpace(r.Key),
		UploadID: strings.TrimSpace(r.UploadID),
	}
}

// MessageResponse 为仅需告知结果的操作返回的通用结构。
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
