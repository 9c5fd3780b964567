package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"compligen-api/internal/config"
)

func testFactory() *EinoFactory {
	return NewEinoFactory(&config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "openrouter",
			FallbackChain:   []string{"openrouter", "openrouter_fallback", "missing"},
			Providers: map[string]config.ProviderConfig{
				"openrouter": {
					Model:               "anthropic/claude-sonnet-4",
					PromptCostPer1K:     0.003,
					CompletionCostPer1K: 0.015,
				},
				"openrouter_fallback": {
					Model: "openai/gpt-4o",
				},
			},
		},
	})
}

func TestCandidatesOrderAndDedup(t *testing.T) {
	f := testFactory()
	// 默认 Provider 优先，回退链去重，未配置项剔除
	assert.Equal(t, []string{"openrouter", "openrouter_fallback"}, f.Candidates())
}

func TestCost(t *testing.T) {
	f := testFactory()

	// 1000 prompt + 500 completion @ 0.003/0.015 每千 token
	assert.InDelta(t, 0.0105, f.Cost("openrouter", 1000, 500), 1e-9)

	// 空名走默认 Provider
	assert.InDelta(t, 0.0105, f.Cost("", 1000, 500), 1e-9)

	// 未配置定价或未知 Provider 记 0
	assert.Zero(t, f.Cost("openrouter_fallback", 1000, 500))
	assert.Zero(t, f.Cost("unknown", 1000, 500))
}

func TestModelName(t *testing.T) {
	f := testFactory()
	assert.Equal(t, "anthropic/claude-sonnet-4", f.ModelName("openrouter"))
	assert.Equal(t, "anthropic/claude-sonnet-4", f.ModelName(""))
	assert.Equal(t, "unknown", f.ModelName("unknown"))
}
