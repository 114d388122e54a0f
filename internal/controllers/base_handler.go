package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/bionicotaku/video-share-service/internal/infrastructure/configloader"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// HandlerType 表示 Handler 的语义类别，用于选择超时策略。
type HandlerType int

const (
	// HandlerTypeDefault 表示未显式区分的 Handler。
	HandlerTypeDefault HandlerType = iota
	// HandlerTypeCommand 表示写操作 Handler（上传确认等可能阻塞数秒）。
	HandlerTypeCommand
	// HandlerTypeQuery 表示只读查询 Handler。
	HandlerTypeQuery
)

// HandlerTimeouts 聚合不同类型 Handler 的超时策略。
type HandlerTimeouts struct {
	Default time.Duration
	Command time.Duration
	Query   time.Duration
}

// NewHandlerTimeouts 从服务配置读取 Handler 超时。
func NewHandlerTimeouts(c configloader.Server) HandlerTimeouts {
	return HandlerTimeouts{
		Default: c.Handlers.DefaultTimeout.Std(),
		Command: c.Handlers.CommandTimeout.Std(),
		Query:   c.Handlers.QueryTimeout.Std(),
	}
}

const (
	fallbackDefaultTimeout = 5 * time.Second
	fallbackQueryTimeout   = 3 * time.Second

	reasonInternal = "INTERNAL"
)

// BaseHandler 提供公共的超时与错误转换能力，供具体 Handler 内嵌复用。
type BaseHandler struct {
	timeouts HandlerTimeouts
	now      func() time.Time
}

// NewBaseHandler 构造基础 Handler，并为缺省值填充合理的回退策略。
func NewBaseHandler(timeouts HandlerTimeouts) *BaseHandler {
	if timeouts.Default <= 0 {
		if timeouts.Command > 0 {
			timeouts.Default = timeouts.Command
		} else if timeouts.Query > 0 {
			timeouts.Default = timeouts.Query
		} else {
			timeouts.Default = fallbackDefaultTimeout
		}
	}
	if timeouts.Command <= 0 {
		timeouts.Command = timeouts.Default
	}
	if timeouts.Query <= 0 {
		if timeouts.Default > 0 {
			timeouts.Query = timeouts.Default
		} else {
			timeouts.Query = fallbackQueryTimeout
		}
	}
	return &BaseHandler{timeouts: timeouts, now: time.Now}
}

// WithTimeout 根据 Handler 类型包装上下文，返回绑定超时的新 Context 与取消函数。
func (h *BaseHandler) WithTimeout(ctx context.Context, kind HandlerType) (context.Context, context.CancelFunc) {
	if h == nil {
		return context.WithTimeout(ctx, fallbackDefaultTimeout)
	}
	var timeout time.Duration
	switch kind {
	case HandlerTypeCommand:
		timeout = h.timeouts.Command
	case HandlerTypeQuery:
		timeout = h.timeouts.Query
	default:
		timeout = h.timeouts.Default
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Timeouts 返回生效的超时配置。
func (h *BaseHandler) Timeouts() HandlerTimeouts {
	if h == nil {
		return HandlerTimeouts{}
	}
	return h.timeouts
}

// Now 返回当前时间，用于计算响应中的相对有效期。
func (h *BaseHandler) Now() time.Time {
	if h == nil || h.now == nil {
		return time.Now()
	}
	return h.now()
}

// toAPIError 透传 kratos 错误，其余错误包装为 500。
func toAPIError(err error, message string) error {
	if err == nil {
		return nil
	}
	var kerr *kerrors.Error
	if errors.As(err, &kerr) {
		return kerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return kerrors.GatewayTimeout("TIMEOUT", message).WithCause(err)
	}
	return kerrors.InternalServer(reasonInternal, message).WithCause(err)
}
