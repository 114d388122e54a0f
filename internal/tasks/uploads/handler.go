package uploads

import (
	"context"
	"fmt"
	"strings"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/gcs"
	"github.com/bionicotaku/video-share-service/internal/models/po"
	"github.com/bionicotaku/video-share-service/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const gcsObjectFinalizeEvent = "OBJECT_FINALIZE"

// Confirmer 确认视频上传。
type Confirmer interface {
	ConfirmUpload(ctx context.Context, videoID uuid.UUID) (*po.Video, error)
}

// Handler 将 OBJECT_FINALIZE 事件映射为 ConfirmUpload 调用。
type Handler struct {
	confirmer Confirmer
	bucket    string
	log       *log.Helper
}

// NewHandler 构造上传事件处理器；bucket 非空时忽略其他桶的通知。
func NewHandler(confirmer Confirmer, bucket string, logger log.Logger) *Handler {
	return &Handler{
		confirmer: confirmer,
		bucket:    bucket,
		log:       log.NewHelper(logger),
	}
}

// Handle 处理单条事件。返回 error 表示需要重投。
func (h *Handler) Handle(ctx context.Context, evt *Event) error {
	if evt == nil {
		return fmt.Errorf("uploads: nil event payload")
	}
	if evt.EventType != "" && !strings.EqualFold(evt.EventType, gcsObjectFinalizeEvent) {
		return nil
	}
	if h.bucket != "" && evt.Bucket != h.bucket {
		h.log.WithContext(ctx).Debugf("uploads: skip foreign bucket=%s object=%s", evt.Bucket, evt.ObjectName)
		return nil
	}
	// 分片与会话清单由 CompleteMultipart 合并，最终对象会再触发一次通知。
	if gcs.IsMultipartObject(evt.ObjectName) {
		return nil
	}
	videoID, ok := services.VideoIDFromObjectKey(evt.ObjectName)
	if !ok {
		h.log.WithContext(ctx).Debugf("uploads: skip non video object=%s", evt.ObjectName)
		return nil
	}

	video, err := h.confirmer.ConfirmUpload(ctx, videoID)
	if err != nil {
		if kerrors.Reason(err) == services.ReasonVideoNotFound {
			h.log.WithContext(ctx).Warnf("uploads: finalize for unknown video video_id=%s object=%s", videoID, evt.ObjectName)
			return nil
		}
		return fmt.Errorf("uploads: confirm video %s: %w", videoID, err)
	}

	h.log.WithContext(ctx).Infof("uploads: confirmed video_id=%s object=%s generation=%s size=%d", videoID, evt.ObjectName, evt.Generation, video.FileSize())
	return nil
}
