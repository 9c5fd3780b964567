package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"compligen-api/internal/domain/entity"
)

func passResult() *entity.AgentResult {
	return &entity.AgentResult{Status: entity.AgentStatusPass, Confidence: 1, Applicable: true}
}

func failResult() *entity.AgentResult {
	return &entity.AgentResult{Status: entity.AgentStatusFail, Confidence: 0.9, Applicable: true}
}

func allPass() map[entity.AgentKind]*entity.AgentResult {
	return map[entity.AgentKind]*entity.AgentResult{
		entity.AgentCitation:  passResult(),
		entity.AgentRecency:   passResult(),
		entity.AgentFactCheck: passResult(),
		entity.AgentTone:      passResult(),
	}
}

func TestComputeTrustScoreAllPass(t *testing.T) {
	assert.Equal(t, 100, ComputeTrustScore(allPass()))
}

func TestComputeTrustScoreSingleFailures(t *testing.T) {
	cases := []struct {
		kind entity.AgentKind
		want int
	}{
		{entity.AgentCitation, 75},
		{entity.AgentRecency, 80},
		{entity.AgentFactCheck, 60},
		{entity.AgentTone, 85},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			results := allPass()
			results[tc.kind] = failResult()
			assert.Equal(t, tc.want, ComputeTrustScore(results))
		})
	}
}

func TestComputeTrustScoreAllFailClampsToZero(t *testing.T) {
	results := map[entity.AgentKind]*entity.AgentResult{
		entity.AgentCitation:  failResult(),
		entity.AgentRecency:   failResult(),
		entity.AgentFactCheck: failResult(),
		entity.AgentTone:      failResult(),
	}
	// 25+20+40+15 = 100，恰好触底
	assert.Equal(t, 0, ComputeTrustScore(results))
}

func TestComputeTrustScoreInapplicableAgentNotPenalized(t *testing.T) {
	results := allPass()
	results[entity.AgentRecency] = &entity.AgentResult{
		Status:     entity.AgentStatusFail,
		Applicable: false,
	}
	assert.Equal(t, 100, ComputeTrustScore(results))
}

func TestComputeTrustScoreMissingResultPenalized(t *testing.T) {
	results := allPass()
	delete(results, entity.AgentFactCheck)
	assert.Equal(t, 60, ComputeTrustScore(results))

	results[entity.AgentFactCheck] = nil
	assert.Equal(t, 60, ComputeTrustScore(results))
}

func TestComputeTrustScoreDeterministic(t *testing.T) {
	results := allPass()
	results[entity.AgentTone] = failResult()
	first := ComputeTrustScore(results)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, ComputeTrustScore(results))
	}
}
