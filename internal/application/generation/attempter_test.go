package generation

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	pkgerrors "compligen-api/pkg/errors"
)

type stubChatModel struct {
	out   *schema.Message
	err   error
	calls int
}

func (m *stubChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.out, nil
}

func (m *stubChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported")
}

type stubModels struct {
	order  []string
	models map[string]*stubChatModel
	prices map[string][2]float64 // prompt/completion 每千 token 单价
}

func (s *stubModels) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	m, ok := s.models[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return m, nil
}

func (s *stubModels) ModelName(name string) string { return name + "-model" }

func (s *stubModels) Candidates() []string { return s.order }

func (s *stubModels) Cost(name string, promptTokens, completionTokens int) float64 {
	p := s.prices[name]
	return float64(promptTokens)/1000*p[0] + float64(completionTokens)/1000*p[1]
}

func assistantMessage(content string, prompt, completion int) *schema.Message {
	return &schema.Message{
		Role:    schema.Assistant,
		Content: content,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: prompt, CompletionTokens: completion},
		},
	}
}

func testPrompts() *PromptPair {
	return &PromptPair{System: "system", User: "user"}
}

func newsRequest() *entity.GenerationRequest {
	return &entity.GenerationRequest{
		Topic:           "insulin pricing",
		Mode:            entity.ModeNews,
		ContentType:     entity.ContentTypeArticleShort,
		TargetWordCount: 400,
	}
}

func TestGenerateFirstCandidateWins(t *testing.T) {
	source := &stubModels{
		order: []string{"primary"},
		models: map[string]*stubChatModel{
			"primary": {out: assistantMessage("draft body", 1000, 500)},
		},
		prices: map[string][2]float64{"primary": {0.003, 0.015}},
	}
	a := NewAttempter(source, &config.GenerationConfig{})

	result, err := a.Generate(context.Background(), newsRequest(), testPrompts())
	require.NoError(t, err)

	assert.Equal(t, "draft body", result.Body)
	assert.Equal(t, "primary", result.Provider)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1000, result.PromptTokens)
	assert.Equal(t, 500, result.CompletionTokens)
	assert.InDelta(t, 0.003+0.0075, result.CostUSD, 1e-9)
}

func TestGenerateFallsBackAndCountsAttempts(t *testing.T) {
	source := &stubModels{
		order: []string{"primary", "fallback"},
		models: map[string]*stubChatModel{
			"primary":  {err: fmt.Errorf("upstream unavailable")},
			"fallback": {out: assistantMessage("fallback body", 200, 100)},
		},
		prices: map[string][2]float64{"fallback": {0.0025, 0.01}},
	}
	a := NewAttempter(source, &config.GenerationConfig{})

	result, err := a.Generate(context.Background(), newsRequest(), testPrompts())
	require.NoError(t, err)

	assert.Equal(t, "fallback", result.Provider)
	assert.Equal(t, 2, result.Attempts)
	assert.InDelta(t, 0.0005+0.001, result.CostUSD, 1e-9)
	assert.Equal(t, 1, source.models["primary"].calls)
	assert.Equal(t, 1, source.models["fallback"].calls)
}

func TestGenerateEmptyOutputTriesNextCandidate(t *testing.T) {
	source := &stubModels{
		order: []string{"primary", "fallback"},
		models: map[string]*stubChatModel{
			"primary":  {out: assistantMessage("   ", 50, 0)},
			"fallback": {out: assistantMessage("usable body", 200, 100)},
		},
	}
	a := NewAttempter(source, &config.GenerationConfig{})

	result, err := a.Generate(context.Background(), newsRequest(), testPrompts())
	require.NoError(t, err)

	assert.Equal(t, "fallback", result.Provider)
	assert.Equal(t, 2, result.Attempts)
}

func TestGenerateAllCandidatesFail(t *testing.T) {
	source := &stubModels{
		order: []string{"primary", "fallback"},
		models: map[string]*stubChatModel{
			"primary":  {err: fmt.Errorf("bad gateway")},
			"fallback": {err: fmt.Errorf("rate limited")},
		},
	}
	a := NewAttempter(source, &config.GenerationConfig{})

	_, err := a.Generate(context.Background(), newsRequest(), testPrompts())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeGenerationFailed, pkgerrors.AsAppError(err).Code)
}

func TestGenerateHonorsMaxCandidates(t *testing.T) {
	source := &stubModels{
		order: []string{"a", "b", "c"},
		models: map[string]*stubChatModel{
			"a": {err: fmt.Errorf("down")},
			"b": {err: fmt.Errorf("down")},
			"c": {out: assistantMessage("never reached", 10, 10)},
		},
	}
	a := NewAttempter(source, &config.GenerationConfig{MaxCandidates: 2})

	_, err := a.Generate(context.Background(), newsRequest(), testPrompts())
	require.Error(t, err)
	assert.Equal(t, 0, source.models["c"].calls)
}
