// Package collector 提供文档采集服务的 HTTP 客户端
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compligen-api/internal/config"
)

var tracer = otel.Tracer("collector")

// Client 文档采集服务客户端
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient 创建采集服务客户端
func NewClient(cfg *config.CollectorConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CollectRequest 采集请求
type CollectRequest struct {
	Keyword           string `json:"keyword"`
	ReturnDocuments   bool   `json:"returnDocuments"`
	WaitForCompletion bool   `json:"waitForCompletion"`
	MaxDocuments      int    `json:"maxDocuments,omitempty"`
}

// CollectedDocument 采集到的文档
type CollectedDocument struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Content     string `json:"content"`
	PublishedAt string `json:"published_at,omitempty"`
}

// CollectResponse 采集响应
type CollectResponse struct {
	Inserted  int                  `json:"inserted"`
	Documents []*CollectedDocument `json:"documents"`
}

// Enabled 采集服务是否已配置
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Collect 同步触发一次关键词采集并等待结果。
// 用于引用不足时的二次补采，调用方需自行限定超时预算。
func (c *Client) Collect(ctx context.Context, req *CollectRequest) (*CollectResponse, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("collector service not configured")
	}
	ctx, span := tracer.Start(ctx, "collector.Collect",
		trace.WithAttributes(attribute.String("keyword", req.Keyword)))
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to marshal collect request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/collect", bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create collect request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("collect request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		err := fmt.Errorf("collect request failed: status=%d", httpResp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var resp CollectResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode collect response: %w", err)
	}

	span.SetAttributes(attribute.Int("inserted", resp.Inserted))
	return &resp, nil
}
