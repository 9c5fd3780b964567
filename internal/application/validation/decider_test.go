package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"compligen-api/internal/domain/entity"
)

func TestDecideHighScoreAllPass(t *testing.T) {
	d := Decide(100, 80, allPass())
	assert.False(t, d.Blocked)
	assert.False(t, d.RequiresReview)
	assert.Equal(t, entity.ResultStatusDraft, d.Status)
}

func TestDecideScoreAtThresholdNotBlocked(t *testing.T) {
	d := Decide(80, 80, allPass())
	assert.False(t, d.Blocked)
}

func TestDecideScoreBelowThresholdBlocked(t *testing.T) {
	results := allPass()
	results[entity.AgentCitation] = failResult()
	d := Decide(75, 80, results)
	assert.True(t, d.Blocked)
	assert.True(t, d.RequiresReview)
	assert.Equal(t, entity.ResultStatusReview, d.Status)
}

func TestDecideAgentFailureForcesReviewWithoutBlocking(t *testing.T) {
	// tone 失败只扣 15 分，信任分仍在阈值之上
	results := allPass()
	results[entity.AgentTone] = failResult()
	d := Decide(85, 80, results)
	assert.False(t, d.Blocked)
	assert.True(t, d.RequiresReview)
	assert.Equal(t, entity.ResultStatusReview, d.Status)
}

func TestDecideZeroThresholdUsesDefault(t *testing.T) {
	d := Decide(79, 0, allPass())
	assert.True(t, d.Blocked)

	d = Decide(80, 0, allPass())
	assert.False(t, d.Blocked)
}

func TestDecideIdempotent(t *testing.T) {
	results := allPass()
	results[entity.AgentFactCheck] = failResult()
	first := Decide(60, 80, results)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Decide(60, 80, results))
	}
}
