// Package llm 提供 LLM ChatModel 工厂
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"compligen-api/internal/config"
	"compligen-api/pkg/errors"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// EinoFactory 管理多个 Eino ChatModel 客户端实例
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// CheckCredentials 校验默认 Provider 的 API Key 是否就绪。
// 请求入口先做该检查，避免进入检索阶段后才发现无法生成。
func (f *EinoFactory) CheckCredentials() error {
	name := f.config.DefaultProvider
	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return errors.ErrMissingOpenRouterKey.WithDetail(fmt.Sprintf("provider %s not configured", name))
	}
	if strings.TrimSpace(providerCfg.APIKey) == "" {
		return errors.ErrMissingOpenRouterKey
	}
	return nil
}

// Get 获取指定名称的 ChatModel，如果未指定则返回默认客户端
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	if strings.TrimSpace(providerCfg.APIKey) == "" {
		return nil, errors.ErrMissingOpenRouterKey.WithDetail(fmt.Sprintf("provider %s has no api key", name))
	}

	// 使用 Eino 的 OpenAI 适配器
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &providerCfg.MaxTokens,
		Temperature: ptrFloat32(float32(providerCfg.Temperature)),
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

// ModelName 返回 Provider 配置的模型标识，用于审计与指标打点
func (f *EinoFactory) ModelName(name string) string {
	if name == "" {
		name = f.config.DefaultProvider
	}
	if providerCfg, ok := f.config.Providers[name]; ok {
		return providerCfg.Model
	}
	return name
}

// Cost 按 Provider 配置的每千 token 单价核算一次调用成本（美元）。
// 未配置定价的 Provider 成本记为 0。
func (f *EinoFactory) Cost(name string, promptTokens, completionTokens int) float64 {
	if name == "" {
		name = f.config.DefaultProvider
	}
	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1000*providerCfg.PromptCostPer1K +
		float64(completionTokens)/1000*providerCfg.CompletionCostPer1K
}

// Candidates 按配置顺序返回候选 Provider 列表：默认 Provider 优先，
// 其后是 fallback_chain 中未重复的项。
func (f *EinoFactory) Candidates() []string {
	seen := make(map[string]bool)
	var out []string
	appendOne := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		if _, ok := f.config.Providers[name]; !ok {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	appendOne(f.config.DefaultProvider)
	for _, name := range f.config.FallbackChain {
		appendOne(name)
	}
	return out
}

// RewriteProvider 返回人性化改写使用的 Provider 名称，未配置时为空
func (f *EinoFactory) RewriteProvider() string {
	return strings.TrimSpace(f.config.RewriteProvider)
}

func ptrFloat32(f float32) *float32 {
	return &f
}
