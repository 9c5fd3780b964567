package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEntry(t *testing.T, job *CollectJobMessage) redis.XMessage {
	t.Helper()
	msg, err := NewMessage(job.JobID, MessageTypeCollectJob, job.UserID, job)
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": string(data)}}
}

func TestDecodeJob(t *testing.T) {
	xmsg := collectEntry(t, &CollectJobMessage{
		JobID:        "collect-abc123",
		UserID:       "u-1",
		GenerationID: "g-1",
		Keyword:      "insulin pricing",
		Scope:        "public",
		MaxDocuments: 5,
	})

	msg, job, err := decodeJob(xmsg)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeCollectJob, msg.Type)
	assert.Equal(t, "collect-abc123", job.JobID)
	assert.Equal(t, "insulin pricing", job.Keyword)
	assert.Equal(t, "public", job.Scope)
	assert.Equal(t, 5, job.MaxDocuments)
}

func TestDecodeJobRejectsForeignType(t *testing.T) {
	msg, err := NewMessage("r-1", MessageTypeAuditLog, "u-1", &AuditLogMessage{RequestID: "r-1", Action: "content_generated"})
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	_, job, decodeErr := decodeJob(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"data": string(data)}})
	require.Error(t, decodeErr)
	assert.Nil(t, job)
	assert.Contains(t, decodeErr.Error(), "unexpected message type")
}

func TestDecodeJobMissingDataField(t *testing.T) {
	_, _, err := decodeJob(redis.XMessage{ID: "3-0", Values: map[string]interface{}{"other": "x"}})
	require.Error(t, err)
}

func TestDecodeJobCorruptEnvelope(t *testing.T) {
	_, _, err := decodeJob(redis.XMessage{ID: "4-0", Values: map[string]interface{}{"data": "{not json"}})
	require.Error(t, err)
}

func TestCalculateBackoffGrowth(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2))
	// 超过上限封顶
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(10))
}
