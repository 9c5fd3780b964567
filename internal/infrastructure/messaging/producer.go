// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishCollectJob 发布二次采集任务。调用方不等待结果，
// 采集由 collect-worker 异步完成。
func (p *Producer) PublishCollectJob(ctx context.Context, job *CollectJobMessage) (string, error) {
	msg, err := NewMessage(job.JobID, MessageTypeCollectJob, job.UserID, job)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("keyword", job.Keyword)
	msg.SetMetadata("scope", job.Scope)

	return p.Publish(ctx, StreamCollectJobs, msg)
}

// PublishAuditLog 发布生成事件审计。审计流只追加，
// 由外部归档链路消费，发布失败不影响请求结果。
func (p *Producer) PublishAuditLog(ctx context.Context, log *AuditLogMessage) (string, error) {
	msg, err := NewMessage(log.RequestID, MessageTypeAuditLog, log.UserID, log)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamAuditLog, msg)
}

// CollectJobMessage 二次采集任务消息
type CollectJobMessage struct {
	JobID        string `json:"job_id"`
	UserID       string `json:"user_id,omitempty"`
	GenerationID string `json:"generation_id,omitempty"`
	Keyword      string `json:"keyword"`
	Scope        string `json:"scope"`
	// MaxDocuments 采集条数上限，0 表示由采集服务决定
	MaxDocuments int `json:"max_documents,omitempty"`
}

// AuditLogMessage 审计日志消息
type AuditLogMessage struct {
	UserID       string                 `json:"user_id,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	RequestID    string                 `json:"request_id"`
	TraceID      string                 `json:"trace_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
