package uploads

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/go-kratos/kratos/v2/log"
)

// Subscriber 抽象 Pub/Sub 订阅的拉取循环。
type Subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Runner 负责消费 GCS OBJECT_FINALIZE 事件。
type Runner struct {
	sub     Subscriber
	decoder *eventDecoder
	handler *Handler
	log     *log.Helper
}

// RunnerParams 注入构建 Runner 所需的依赖。
type RunnerParams struct {
	Subscriber Subscriber
	Confirmer  Confirmer
	Bucket     string
	Logger     log.Logger
}

// NewRunner 构造上传事件 Runner。
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Subscriber == nil {
		return nil, fmt.Errorf("uploads: subscriber is required")
	}
	if params.Confirmer == nil {
		return nil, fmt.Errorf("uploads: confirmer is required")
	}
	logger := params.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Runner{
		sub:     params.Subscriber,
		decoder: newDecoder(),
		handler: NewHandler(params.Confirmer, params.Bucket, logger),
		log:     log.NewHelper(logger),
	}, nil
}

// Run 启动消费循环，直到 ctx 取消。
func (r *Runner) Run(ctx context.Context) error {
	if r == nil {
		return nil
	}
	err := r.sub.Receive(ctx, r.process)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("uploads: receive: %w", err)
	}
	return nil
}

func (r *Runner) process(ctx context.Context, msg *pubsub.Message) {
	evt, err := r.decoder.Decode(msg.Data, msg.Attributes)
	if err != nil {
		// 无法解析的消息重投也无法成功，直接确认。
		r.log.WithContext(ctx).Warnf("uploads: drop malformed message id=%s err=%v", msg.ID, err)
		msg.Ack()
		return
	}
	if err := r.handler.Handle(ctx, evt); err != nil {
		r.log.WithContext(ctx).Errorf("uploads: handle message id=%s object=%s err=%v", msg.ID, evt.ObjectName, err)
		msg.Nack()
		return
	}
	msg.Ack()
}
