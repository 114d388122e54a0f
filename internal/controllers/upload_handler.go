package controllers

import (
	"context"

	"github.com/bionicotaku/video-share-service/internal/controllers/dto"
	"github.com/bionicotaku/video-share-service/internal/models/po"
	"github.com/bionicotaku/video-share-service/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// UploadUsecase 定义上传编排能力。
type UploadUsecase interface {
	RequestUpload(ctx context.Context, input services.RequestUploadInput) (*services.RequestUploadResult, error)
	RequestPartURL(ctx context.Context, videoID uuid.UUID, input services.RequestPartURLInput) (*services.PartURLResult, error)
	CompleteMultipartUpload(ctx context.Context, videoID uuid.UUID, input services.CompleteMultipartInput) (*po.Video, error)
	AbortMultipartUpload(ctx context.Context, videoID uuid.UUID, input services.AbortMultipartInput) error
	ConfirmUpload(ctx context.Context, videoID uuid.UUID) (*po.Video, error)
}

// UploadHandler 处理管理端上传相关的 HTTP 请求。
type UploadHandler struct {
	*BaseHandler
	svc UploadUsecase
}

// NewUploadHandler 构造 UploadHandler。
func NewUploadHandler(base *BaseHandler, svc UploadUsecase) *UploadHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &UploadHandler{BaseHandler: base, svc: svc}
}

// RequestUpload 处理 POST /api/videos/upload-url。
func (h *UploadHandler) RequestUpload(c khttp.Context) error {
	in := &dto.RequestUploadRequest{}
	return invoke(c, OperationRequestUpload, in, func(ctx context.Context, _ any) (any, error) {
		if err := bindBody(c, in); err != nil {
			return nil, err
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
		defer cancel()

		res, err := h.svc.RequestUpload(ctx, in.ToInput())
		if err != nil {
			return nil, toAPIError(err, "request upload failed")
		}
		return dto.NewRequestUploadResponse(res, h.Now()), nil
	})
}

// ConfirmUpload 处理 POST /api/videos/{id}/confirm-upload。
func (h *UploadHandler) ConfirmUpload(c khttp.Context) error {
	return invoke(c, OperationConfirmUpload, nil, handle(func(ctx context.Context) (any, error) {
		videoID, err := pathVideoID(c)
		if err != nil {
			return nil, err
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
		defer cancel()

		video, err := h.svc.ConfirmUpload(ctx, videoID)
		if err != nil {
			return nil, toAPIError(err, "confirm upload failed")
		}
		return dto.NewVideo(video, h.Now()), nil
	}))
}

// RequestPartURL 处理 POST /api/videos/{id}/part-url。
func (h *UploadHandler) RequestPartURL(c khttp.Context) error {
	in := &dto.PartURLRequest{}
	return invoke(c, OperationRequestPartURL, in, func(ctx context.Context, _ any) (any, error) {
		videoID, err := pathVideoID(c)
		if err != nil {
			return nil, err
		}
		if err := bindBody(c, in); err != nil {
			return nil, err
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
		defer cancel()

		res, err := h.svc.RequestPartURL(ctx, videoID, in.ToInput())
		if err != nil {
			return nil, toAPIError(err, "request part url failed")
		}
		return dto.NewPartURLResponse(res), nil
	})
}

// CompleteMultipartUpload 处理 POST /api/videos/{id}/complete-multipart。
func (h *UploadHandler) CompleteMultipartUpload(c khttp.Context) error {
	in := &dto.CompleteMultipartRequest{}
	return invoke(c, OperationCompleteMultipartUpload, in, func(ctx context.Context, _ any) (any, error) {
		videoID, err := pathVideoID(c)
		if err != nil {
			return nil, err
		}
		if err := bindBody(c, in); err != nil {
			return nil, err
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
		defer cancel()

		if _, err := h.svc.CompleteMultipartUpload(ctx, videoID, in.ToInput()); err != nil {
			return nil, toAPIError(err, "complete multipart upload failed")
		}
		return &dto.MessageResponse{Success: true, Message: "Multipart upload completed"}, nil
	})
}

// AbortMultipartUpload 处理 POST /api/videos/{id}/abort-multipart。
func (h *UploadHandler) AbortMultipartUpload(c khttp.Context) error {
	in := &dto.AbortMultipartRequest{}
	return invoke(c, OperationAbortMultipartUpload, in, func(ctx context.Context, _ any) (any, error) {
		videoID, err := pathVideoID(c)
		if err != nil {
			return nil, err
		}
		if err := bindBody(c, in); err != nil {
			return nil, err
		}
		ctx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
		defer cancel()

		if err := h.svc.AbortMultipartUpload(ctx, videoID, in.ToInput()); err != nil {
			return nil, toAPIError(err, "abort multipart upload failed")
		}
		return &dto.MessageResponse{Success: true, Message: "Multipart upload aborted"}, nil
	})
}

func bindBody(c khttp.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return services.ErrValidation("invalid request body").WithCause(err)
	}
	return nil
}

func pathVideoID(c khttp.Context) (uuid.UUID, error) {
	id, err := dto.ParseVideoID(c.Vars().Get("id"))
	if err != nil {
		return uuid.Nil, services.ErrValidation(err.Error())
	}
	return id, nil
}
