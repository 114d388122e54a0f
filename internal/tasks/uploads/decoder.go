// Package uploads 消费 GCS OBJECT_FINALIZE 通知，自动确认已落地的上传。
package uploads

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// GCS Pub/Sub 通知携带的消息属性。
const (
	attrEventType  = "eventType"
	attrBucketID   = "bucketId"
	attrObjectID   = "objectId"
	attrGeneration = "objectGeneration"
)

// Event 表示从 GCS 通知中解析出的对象信息。
type Event struct {
	EventType   string
	Bucket      string
	ObjectName  string
	Generation  string
	SizeBytes   int64
	ContentType string
}

type gcsObjectMessage struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	Generation  string `json:"generation"`
	Size        string `json:"size"`
	ContentType string `json:"contentType"`
}

type eventDecoder struct{}

func newDecoder() *eventDecoder {
	return &eventDecoder{}
}

// Decode 将消息体与属性解析为 Event；属性优先，消息体补充大小等元数据。
func (d *eventDecoder) Decode(data []byte, attrs map[string]string) (*Event, error) {
	evt := &Event{
		EventType:  attrs[attrEventType],
		Bucket:     attrs[attrBucketID],
		ObjectName: attrs[attrObjectID],
		Generation: attrs[attrGeneration],
	}

	if len(data) > 0 {
		var msg gcsObjectMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("uploads: decode gcs object payload: %w", err)
		}
		if evt.Bucket == "" {
			evt.Bucket = msg.Bucket
		}
		if evt.ObjectName == "" {
			evt.ObjectName = msg.Name
		}
		if evt.Generation == "" {
			evt.Generation = msg.Generation
		}
		evt.ContentType = msg.ContentType
		if msg.Size != "" {
			size, err := strconv.ParseInt(msg.Size, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("uploads: parse size: %w", err)
			}
			evt.SizeBytes = size
		}
	}

	if evt.Bucket == "" || evt.ObjectName == "" {
		return nil, fmt.Errorf("uploads: missing bucket or object name")
	}
	return evt, nil
}
