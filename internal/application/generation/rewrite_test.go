package generation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/infrastructure/llm"
)

func newTestRewriter(rewriteProvider string) *Rewriter {
	factory := llm.NewEinoFactory(&config.Config{
		LLM: config.LLMConfig{RewriteProvider: rewriteProvider},
	})
	return NewRewriter(factory, &config.GenerationConfig{RewriteMinBudget: 20 * time.Second})
}

func TestShouldRewriteGate(t *testing.T) {
	r := newTestRewriter("openrouter")

	tests := []struct {
		name      string
		level     entity.HumanizeLevel
		ct        entity.ContentType
		remaining time.Duration
		want      bool
	}{
		{"standard long form", entity.HumanizeStandard, entity.ContentTypeArticleLong, 30 * time.Second, true},
		{"strong short form", entity.HumanizeStrong, entity.ContentTypeArticleShort, 30 * time.Second, true},
		{"level off", entity.HumanizeOff, entity.ContentTypeArticleLong, 30 * time.Second, false},
		{"level empty", "", entity.ContentTypeArticleLong, 30 * time.Second, false},
		{"meta tags never rewritten", entity.HumanizeStandard, entity.ContentTypeMetaTags, 30 * time.Second, false},
		{"budget below minimum", entity.HumanizeStandard, entity.ContentTypeArticleLong, 10 * time.Second, false},
		{"budget exactly at minimum", entity.HumanizeStandard, entity.ContentTypeArticleLong, 20 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &entity.GenerationRequest{
				HumanizeLevel: tt.level,
				ContentType:   tt.ct,
			}
			assert.Equal(t, tt.want, r.ShouldRewrite(req, tt.remaining))
		})
	}
}

func TestShouldRewriteRequiresProvider(t *testing.T) {
	r := newTestRewriter("")
	req := &entity.GenerationRequest{
		HumanizeLevel: entity.HumanizeStrong,
		ContentType:   entity.ContentTypeArticleLong,
	}
	assert.False(t, r.ShouldRewrite(req, time.Minute))
}
