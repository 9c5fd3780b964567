// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compligen-api/pkg/logger"
	"compligen-api/pkg/metrics"
)

// JobHandler 采集任务处理函数
type JobHandler func(ctx context.Context, job *CollectJobMessage) error

// Consumer 采集任务消费者。只服务 stream:collect:jobs 单流单组：
// 失败任务留在 pending 按退避重试，超过重试上限进入死信流。
// 其他消费者实例长时间未确认的任务会被接管，保证 worker 宕机后任务不丢。
type Consumer struct {
	client        *redis.Client
	consumerName  string
	blockTimeout  time.Duration
	claimInterval time.Duration
	reclaimIdle   time.Duration
	retryLimit    int
	backoff       BackoffConfig

	handler JobHandler
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// NewConsumer 创建采集任务消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}

	reclaimIdle := 5 * time.Minute
	if cfg.Backoff.Max*2 > reclaimIdle {
		reclaimIdle = cfg.Backoff.Max * 2
	}

	return &Consumer{
		client:        client,
		consumerName:  cfg.ConsumerName,
		blockTimeout:  cfg.BlockTimeout,
		claimInterval: cfg.ClaimInterval,
		reclaimIdle:   reclaimIdle,
		retryLimit:    cfg.RetryLimit,
		backoff:       cfg.Backoff,
		stopCh:        make(chan struct{}),
	}
}

// Handle 设置采集任务处理函数，须在 Start 之前调用
func (c *Consumer) Handle(handler JobHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Start 启动消费循环
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	if c.handler == nil {
		c.mu.Unlock()
		return fmt.Errorf("no job handler registered")
	}
	c.running = true
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(StreamCollectJobs), string(ConsumerGroupCollector), "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

// Stop 停止消费者
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

// run 消费循环
func (c *Consumer) run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("collect consumer started",
		"stream", StreamCollectJobs,
		"consumer", c.consumerName,
	)

	lastStaleSweep := time.Now().Add(-c.claimInterval)

	for {
		select {
		case <-ctx.Done():
			log.Info("collect consumer stopped due to context cancellation")
			return
		case <-c.stopCh:
			log.Info("collect consumer stopped")
			return
		default:
		}

		c.sweepPending(ctx, false)
		if time.Since(lastStaleSweep) >= c.claimInterval {
			c.sweepPending(ctx, true)
			lastStaleSweep = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(ConsumerGroupCollector),
			Consumer: c.consumerName,
			Streams:  []string{string(StreamCollectJobs), ">"},
			Count:    10,
			Block:    c.blockTimeout,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			log.Error("failed to read collect stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				c.processMessage(ctx, xmsg)
			}
		}
	}
}

// decodeJob 解包流条目为采集任务。类型不符或载荷损坏返回错误，
// 这类毒消息由调用方直接确认，不进入重试。
func decodeJob(xmsg redis.XMessage) (*Message, *CollectJobMessage, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, nil, fmt.Errorf("stream entry %s has no data field", xmsg.ID)
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal stream entry %s: %w", xmsg.ID, err)
	}
	if msg.Type != MessageTypeCollectJob {
		return &msg, nil, fmt.Errorf("unexpected message type %q on collect stream", msg.Type)
	}

	var job CollectJobMessage
	if err := msg.UnmarshalPayload(&job); err != nil {
		return &msg, nil, fmt.Errorf("failed to unmarshal collect job payload: %w", err)
	}
	return &msg, &job, nil
}

// processMessage 处理单个采集任务条目
func (c *Consumer) processMessage(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.processCollectJob",
		trace.WithAttributes(attribute.String("stream.message_id", xmsg.ID)))
	defer span.End()

	msg, job, err := decodeJob(xmsg)
	if err != nil {
		logger.FromContext(ctx).Error("dropping undecodable collect message", "error", err, "message_id", xmsg.ID)
		c.ack(ctx, xmsg.ID)
		return
	}

	if job.UserID != "" {
		ctx = logger.WithContext(ctx, logger.UserIDKey, job.UserID)
	}
	if job.GenerationID != "" {
		ctx = logger.WithContext(ctx, logger.GenerationIDKey, job.GenerationID)
	}

	span.SetAttributes(
		attribute.String("job.id", job.JobID),
		attribute.String("job.keyword", job.Keyword),
		attribute.String("job.scope", job.Scope),
	)

	if err := c.handler(ctx, job); err != nil {
		span.RecordError(err)
		logger.FromContext(ctx).Error("collect job failed", "error", err,
			"job_id", job.JobID,
			"keyword", job.Keyword,
		)
		c.handleFailure(ctx, xmsg, msg, job, err)
		return
	}

	c.ack(ctx, xmsg.ID)
}

// ack 确认消息
func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(StreamCollectJobs), string(ConsumerGroupCollector), id).Err(); err != nil {
		logger.FromContext(ctx).Error("failed to ack collect message", "error", err, "message_id", id)
	}
}

// handleFailure 失败处理：未达重试上限的任务留在 pending，
// 由 sweepPending 按退避再投递；达到上限直接进死信流。
func (c *Consumer) handleFailure(ctx context.Context, xmsg redis.XMessage, msg *Message, job *CollectJobMessage, cause error) {
	retryCount := c.getRetryCount(ctx, xmsg.ID)

	if retryCount >= c.retryLimit {
		c.deadLetter(ctx, xmsg.ID, msg, job, cause)
		return
	}
	logger.FromContext(ctx).Info("collect job left pending for retry",
		"job_id", job.JobID,
		"keyword", job.Keyword,
		"retry_count", retryCount,
		"next_backoff", c.backoff.CalculateBackoff(retryCount),
	)
}

// getRetryCount 通过 XPENDING 获取消息的投递次数
func (c *Consumer) getRetryCount(ctx context.Context, messageID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(StreamCollectJobs),
		Group:  string(ConsumerGroupCollector),
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()

	if err != nil || len(pending) == 0 {
		return 0
	}

	return int(pending[0].RetryCount)
}

// deadLetter 将任务移入死信流并确认原条目
func (c *Consumer) deadLetter(ctx context.Context, streamID string, msg *Message, job *CollectJobMessage, cause error) {
	entry := map[string]interface{}{
		"data":      msg,
		"job_id":    job.JobID,
		"keyword":   job.Keyword,
		"error":     cause.Error(),
		"failed_at": time.Now().Unix(),
	}

	data, _ := json.Marshal(entry)
	c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamCollectJobs.DLQStream(),
		Values: map[string]interface{}{"data": string(data)},
	})
	c.ack(ctx, streamID)

	metrics.CollectJobsTotal.WithLabelValues("background", "dead_letter").Inc()
	logger.FromContext(ctx).Warn("collect job moved to dead letter stream",
		"job_id", job.JobID,
		"keyword", job.Keyword,
		"error", cause.Error(),
	)
}

// sweepPending 扫描 pending 条目。stale=false 处理本实例退避到期的重试；
// stale=true 接管其他实例长时间未确认的任务。超限条目直接进死信流。
func (c *Consumer) sweepPending(ctx context.Context, stale bool) {
	args := &redis.XPendingExtArgs{
		Stream: string(StreamCollectJobs),
		Group:  string(ConsumerGroupCollector),
		Start:  "-",
		End:    "+",
		Count:  20,
	}
	if !stale {
		args.Consumer = c.consumerName
	}

	pending, err := c.client.XPendingExt(ctx, args).Result()
	if err != nil {
		if err == redis.Nil {
			return
		}
		logger.FromContext(ctx).Error("failed to query pending collect jobs", "error", err, "stale", stale)
		return
	}

	for i := range pending {
		p := pending[i]
		if stale {
			if p.Consumer == c.consumerName || p.Idle < c.reclaimIdle {
				continue
			}
		}

		retryCount := int(p.RetryCount)
		exhausted := retryCount >= c.retryLimit

		// 超限任务立即接管；重试任务等退避窗口到期
		minIdle := time.Duration(0)
		if stale {
			minIdle = c.reclaimIdle
		} else if !exhausted {
			minIdle = c.backoff.CalculateBackoff(retryCount)
			if p.Idle < minIdle {
				continue
			}
		}

		claimed, claimErr := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   string(StreamCollectJobs),
			Group:    string(ConsumerGroupCollector),
			Consumer: c.consumerName,
			MinIdle:  minIdle,
			Messages: []string{p.ID},
		}).Result()
		if claimErr != nil {
			logger.FromContext(ctx).Error("failed to claim pending collect job", "error", claimErr, "message_id", p.ID)
			continue
		}

		for _, xmsg := range claimed {
			if !exhausted {
				c.processMessage(ctx, xmsg)
				continue
			}

			msg, job, decodeErr := decodeJob(xmsg)
			if decodeErr != nil {
				c.ack(ctx, xmsg.ID)
				continue
			}
			c.deadLetter(ctx, xmsg.ID, msg, job,
				fmt.Errorf("collect job exceeded %d retries", c.retryLimit))
		}
	}
}

// MonitorDLQ 周期巡检死信流深度，超过阈值告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	dlqStream := StreamCollectJobs.DLQStream()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			info, err := c.client.XInfoStream(ctx, dlqStream).Result()
			if err != nil {
				continue
			}

			metrics.CollectDLQDepth.Set(float64(info.Length))
			if info.Length > alertThreshold {
				log.Warn("dead collect jobs piling up",
					"stream", dlqStream,
					"count", info.Length,
				)
			}
		}
	}
}
