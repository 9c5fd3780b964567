// Package evidence 实现证据链路：URL 验证、多级检索回退与引用整编
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compligen-api/internal/config"
	redisinfra "compligen-api/internal/infrastructure/persistence/redis"
	"compligen-api/pkg/logger"
	"compligen-api/pkg/metrics"
)

var tracer = otel.Tracer("evidence")

// Verifier 通过带 Range 限制的轻量探测判断来源 URL 是否存活
type Verifier struct {
	httpClient *http.Client
	cache      *redisinfra.Cache
	cacheTTL   time.Duration
}

// NewVerifier 创建 URL 验证器。cache 可为 nil，此时每次都发起网络探测。
func NewVerifier(cfg *config.VerifierConfig, cache *redisinfra.Cache) *Verifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Verifier{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// NormalizeURL 规范化来源 URL：补全 scheme、拒绝非 http(s) 协议。
// 返回空串表示不可用。
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

type verifyCacheEntry struct {
	Valid    bool   `json:"valid"`
	FinalURL string `json:"final_url,omitempty"`
}

// Verify 探测 URL 是否存活，返回重定向解析后的最终 URL。
// 401/403/405/429 视为存活：多数站点会拒绝 Range 探测或机器流量，
// 这并不代表资源不存在。该取舍保留了已知的误报空间。
func (v *Verifier) Verify(ctx context.Context, rawURL string) (string, bool) {
	ctx, span := tracer.Start(ctx, "evidence.Verify",
		trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	normalized := NormalizeURL(rawURL)
	if normalized == "" {
		metrics.URLVerifyTotal.WithLabelValues("invalid").Inc()
		return "", false
	}

	if v.cache != nil {
		if data, err := v.cache.Get(ctx, verifyCacheKey(normalized)); err == nil && data != nil {
			var entry verifyCacheEntry
			if json.Unmarshal(data, &entry) == nil {
				metrics.URLVerifyTotal.WithLabelValues("cached").Inc()
				return entry.FinalURL, entry.Valid
			}
		}
	}

	finalURL, ok := v.probe(ctx, normalized)

	if v.cache != nil {
		entry := verifyCacheEntry{Valid: ok, FinalURL: finalURL}
		if err := v.cache.Set(ctx, verifyCacheKey(normalized), entry, v.cacheTTL); err != nil {
			logger.FromContext(ctx).Debug("failed to cache url verification", "error", err)
		}
	}

	if ok {
		metrics.URLVerifyTotal.WithLabelValues("valid").Inc()
	} else {
		metrics.URLVerifyTotal.WithLabelValues("invalid").Inc()
	}
	span.SetAttributes(attribute.Bool("valid", ok))
	return finalURL, ok
}

// probe 发起只取首字节的探测请求
func (v *Verifier) probe(ctx context.Context, target string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; compligen/1.0)")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if !statusIndicatesExists(resp.StatusCode) {
		return "", false
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return finalURL, true
}

// statusIndicatesExists 判定探测状态码是否代表资源存活
func statusIndicatesExists(code int) bool {
	if code >= 200 && code < 400 {
		return true
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusMethodNotAllowed, http.StatusTooManyRequests:
		return true
	}
	return false
}

func verifyCacheKey(normalized string) string {
	return fmt.Sprintf("verify:url:%s", normalized)
}
