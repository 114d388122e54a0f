package controllers

import (
	"context"

	"github.com/bionicotaku/video-share-service/internal/controllers/dto"
	"github.com/bionicotaku/video-share-service/internal/models/vo"
	"github.com/bionicotaku/video-share-service/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// VideoUsecase 定义下载闸门与管理端视频操作。
type VideoUsecase interface {
	GetPublicInfo(ctx context.Context, videoID uuid.UUID) (*vo.PublicVideo, error)
	IssueDownloadLink(ctx context.Context, videoID uuid.UUID) (*vo.DownloadLink, error)
	SetEnabled(ctx context.Context, videoID uuid.UUID, enabled bool) (*vo.AdminVideo, error)
	List(ctx context.Context) ([]*vo.AdminVideo, error)
	Delete(ctx context.Context, videoID uuid.UUID) error
}

// VideoHandler 处理视频查询、下载与管理请求。
type VideoHandler struct {
	*BaseHandler
	svc VideoUsecase
}

// NewVideoHandler 构造 VideoHandler。
func NewVideoHandler(base *BaseHandler, svc VideoUsecase) *VideoHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &VideoHandler{BaseHandler: base, svc: svc}
}

// List 处理 GET /api/videos。
func (h *VideoHandler) List(c khttp.Context) error {
	return invoke(c, OperationListVideos, nil, handle(func(ctx context.Context) (any, error) {
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
		defer cancel()

		items, err := h.svc.List(ctx)
		if err != nil {
			return nil, toAPIError(err, "list videos failed")
		}
		return dto.NewListVideosResponse(items), nil
	}))
}

// GetPublicInfo 处理 GET /api/videos/{id}。
func (h *VideoHandler) GetPublicInfo(c khttp.Context) error {
	return invoke(c, OperationGetPublicInfo, nil, handle(func(ctx context.Context) (any, error) {
		videoID, err := pathVideoID(c)
		if err != nil {
			return nil, err
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
		defer cancel()

		info, err := h.svc.GetPublicInfo(ctx, videoID)
		if err != nil {
			return nil, toAPIError(err, "get video failed")
		}
		return dto.NewPublicVideoResponse(info), nil
	}))
}

// IssueDownloadLink 处理 POST /api/videos/{id}/download。
func (h *VideoHandler) IssueDownloadLink(c khttp.Context) error {
	return invoke(c, OperationIssueDownloadLink, nil, handle(func(ctx context.Context) (any, error) {
		videoID, err := pathVideoID(c)
		if err != nil {
			return nil, err
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
		defer cancel()

		link, err := h.svc.IssueDownloadLink(ctx, videoID)
		if err != nil {
			return nil, toAPIError(err, "issue download link failed")
		}
		return dto.NewDownloadResponse(link, h.Now()), nil
	}))
}

// SetEnabled 处理 PATCH /api/videos/{id}/toggle。
func (h *VideoHandler) SetEnabled(c khttp.Context) error {
	in := &dto.ToggleRequest{}
	return invoke(c, OperationSetEnabled, in, func(ctx context.Context, _ any) (any, error) {
		videoID, err := pathVideoID(c)
		if err != nil {
			return nil, err
		}
		if err := bindBody(c, in); err != nil {
			return nil, services.ErrValidation("isEnabled must be a boolean").WithCause(err)
		}
		enabled, ok := in.Value()
		if !ok {
			return nil, services.ErrValidation("isEnabled must be a boolean")
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
		defer cancel()

		video, err := h.svc.SetEnabled(ctx, videoID, enabled)
		if err != nil {
			return nil, toAPIError(err, "toggle video failed")
		}
		return dto.NewToggleResponse(video), nil
	})
}

// Delete 处理 DELETE /api/videos/{id}。
func (h *VideoHandler) Delete(c khttp.Context) error {
	return invoke(c, OperationDeleteVideo, nil, handle(func(ctx context.Context) (any, error) {
		videoID, err := pathVideoID(c)
		if err != nil {
			return nil, err
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
		defer cancel()

		if err := h.svc.Delete(ctx, videoID); err != nil {
			return nil, toAPIError(err, "delete video failed")
		}
		return &dto.MessageResponse{Success: true, Message: "Video deleted"}, nil
	}))
}
