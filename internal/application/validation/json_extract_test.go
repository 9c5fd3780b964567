package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObjectClean(t *testing.T) {
	in := `{"status":"pass","issues":[],"confidence":0.9}`
	assert.Equal(t, in, extractJSONObject(in))
}

func TestExtractJSONObjectWithSurroundingText(t *testing.T) {
	in := "Here is my assessment:\n```json\n{\"status\": \"fail\", \"issues\": [\"unsupported claim\"], \"confidence\": 0.8}\n```\nLet me know if you need more."
	got := extractJSONObject(in)

	var resp agentResponse
	require.NoError(t, json.Unmarshal([]byte(got), &resp))
	assert.Equal(t, "fail", resp.Status)
	assert.Equal(t, []string{"unsupported claim"}, resp.Issues)
	assert.InDelta(t, 0.8, resp.Confidence, 1e-9)
}

func TestExtractJSONObjectNestedBraces(t *testing.T) {
	in := `prefix {"status":"pass","issues":["uses {braces} inside"],"confidence":1} suffix`
	got := extractJSONObject(in)

	var resp agentResponse
	require.NoError(t, json.Unmarshal([]byte(got), &resp))
	assert.Equal(t, "pass", resp.Status)
}

func TestExtractJSONObjectNoObject(t *testing.T) {
	in := "the model refused to answer"
	got := extractJSONObject(in)

	var resp agentResponse
	assert.Error(t, json.Unmarshal([]byte(got), &resp))
}

func TestExtractJSONObjectEmpty(t *testing.T) {
	assert.Equal(t, "", extractJSONObject(""))
	assert.Equal(t, "", extractJSONObject("   \n  "))
}
