package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
)

func TestSwarmRunSkipsAfterBudgetExhausted(t *testing.T) {
	s := NewSwarm(nil, &config.ValidationConfig{TrustThreshold: 80})
	req := &entity.GenerationRequest{Mode: entity.ModeNews, ContentType: entity.ContentTypeArticleShort}

	score, results, skipped := s.Run(context.Background(), req, &entity.EvidenceSet{}, "body", time.Now().Add(-time.Second))

	require.True(t, skipped)
	assert.Zero(t, score)
	require.Len(t, results, len(entity.AgentKinds))
	for _, kind := range entity.AgentKinds {
		res := results[kind]
		require.NotNil(t, res, "agent %s missing from skipped results", kind)
		assert.Equal(t, entity.AgentStatusFail, res.Status)
		assert.True(t, res.Applicable)
		assert.NotEmpty(t, res.Issues)
	}
}

func TestSwarmSkippedResultBlocksContent(t *testing.T) {
	s := NewSwarm(nil, &config.ValidationConfig{TrustThreshold: 80})
	req := &entity.GenerationRequest{Mode: entity.ModePrivate, ContentType: entity.ContentTypeArticleLong}

	score, results, skipped := s.Run(context.Background(), req, &entity.EvidenceSet{}, "body", time.Now())

	require.True(t, skipped)
	decision := Decide(score, 80, results)
	assert.True(t, decision.Blocked)
	assert.True(t, decision.RequiresReview)
	assert.Equal(t, entity.ResultStatusReview, decision.Status)
}
