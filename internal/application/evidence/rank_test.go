package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlapScoreIgnoresShortTokens(t *testing.T) {
	// "fda" 和 "on" 均短于 4 字符，不计分
	assert.Equal(t, 0, overlapScore("fda on", "the fda issued guidance on labeling"))
	assert.Equal(t, 1, overlapScore("labeling rules", "the fda issued guidance on labeling"))
}

func TestOverlapScoreCaseInsensitive(t *testing.T) {
	assert.Equal(t, 2, overlapScore("Ozempic Shortage", "OZEMPIC supply SHORTAGE continues"))
}

func TestOverlapScoreSeparators(t *testing.T) {
	// 连字符与标点作为分隔符切词
	assert.Equal(t, 2, overlapScore("semaglutide-pricing, 2024!", "semaglutide pricing debate"))
}

func TestRankCandidatesOrderAndLimit(t *testing.T) {
	candidates := []*candidateDocument{
		{Title: "unrelated piece", Content: "nothing relevant here"},
		{Title: "drug pricing reform", Content: "pricing reform for diabetes products"},
		{Title: "insulin pricing reform analysis", Content: "insulin pricing reform analysis in depth"},
	}
	ranked := rankCandidates("insulin pricing reform", candidates, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "insulin pricing reform analysis", ranked[0].Title)
	assert.Equal(t, "drug pricing reform", ranked[1].Title)
}

func TestRankCandidatesStableOnTies(t *testing.T) {
	candidates := []*candidateDocument{
		{Title: "first pricing note", URL: "https://a.example"},
		{Title: "second pricing note", URL: "https://b.example"},
	}
	ranked := rankCandidates("pricing", candidates, 0)
	require.Len(t, ranked, 2)
	assert.Equal(t, "https://a.example", ranked[0].URL)
	assert.Equal(t, "https://b.example", ranked[1].URL)
}
