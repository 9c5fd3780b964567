// Package websearch 提供互联网兜底搜索客户端
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compligen-api/internal/config"
)

var tracer = otel.Tracer("websearch")

// Client 搜索客户端
type Client struct {
	endpoint   string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

// NewClient 创建搜索客户端
func NewClient(cfg *config.WebSearchConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled 搜索服务是否已配置
func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// Result 搜索结果条目
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"-"`
}

type searchResponse struct {
	Results []*Result `json:"results"`
}

// Search 执行关键词搜索
func (c *Client) Search(ctx context.Context, query string) ([]*Result, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("web search not configured")
	}
	ctx, span := tracer.Start(ctx, "websearch.Search",
		trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	u, err := url.Parse(c.endpoint + "/search")
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("limit", fmt.Sprintf("%d", c.maxResults))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("search request failed: status=%d", resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(sr.Results)))
	return sr.Results, nil
}

// FetchContent 抓取页面并抽取正文文本。抓取失败时返回空串而非错误，
// 兜底检索容忍单页失败。
func (c *Client) FetchContent(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; compligen/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, header, footer, aside, noscript").Remove()

	var sb strings.Builder
	doc.Find("article p, main p, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) < 40 {
			return true
		}
		sb.WriteString(text)
		sb.WriteString("\n")
		return sb.Len() < 6000
	})

	return strings.TrimSpace(sb.String())
}
