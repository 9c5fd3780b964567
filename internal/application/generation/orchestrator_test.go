package generation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/infrastructure/messaging"
)

type fakeDraftRepo struct {
	drafts []*entity.Draft
}

func (f *fakeDraftRepo) Create(ctx context.Context, draft *entity.Draft) error {
	f.drafts = append(f.drafts, draft)
	return nil
}

func (f *fakeDraftRepo) GetByID(ctx context.Context, id string) (*entity.Draft, error) {
	for _, d := range f.drafts {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

type fakeAuditRepo struct {
	rows []*entity.ValidationAudit
}

func (f *fakeAuditRepo) CreateBatch(ctx context.Context, audits []*entity.ValidationAudit) error {
	f.rows = append(f.rows, audits...)
	return nil
}

func (f *fakeAuditRepo) ListByDraft(ctx context.Context, draftID string) ([]*entity.ValidationAudit, error) {
	return f.rows, nil
}

type fakeAuditStream struct {
	events []*messaging.AuditLogMessage
}

func (f *fakeAuditStream) PublishAuditLog(ctx context.Context, log *messaging.AuditLogMessage) (string, error) {
	f.events = append(f.events, log)
	return "1-0", nil
}

func TestPersistPublishesAuditEvent(t *testing.T) {
	drafts := &fakeDraftRepo{}
	audits := &fakeAuditRepo{}
	stream := &fakeAuditStream{}
	o := &Orchestrator{
		cfg:      &config.Config{},
		drafts:   drafts,
		audits:   audits,
		auditlog: stream,
	}

	req := &entity.GenerationRequest{
		UserID:      "u-1",
		Topic:       "insulin pricing",
		Mode:        entity.ModeNews,
		ContentType: entity.ContentTypeArticleShort,
	}
	result := &entity.GenerationResult{
		ID:         "draft-1",
		TrustScore: 55,
		Blocked:    true,
		Status:     entity.ResultStatusReview,
		CreatedAt:  time.Now().UTC(),
		RunMetrics: entity.RunMetrics{
			ModelUsed:        "test-model",
			GenerateAttempts: 2,
			PromptTokens:     1000,
			CompletionTokens: 500,
			CostUSD:          0.0105,
			ValidationRan:    true,
		},
	}
	agentResults := map[entity.AgentKind]*entity.AgentResult{
		entity.AgentFactCheck: {Status: entity.AgentStatusFail, Applicable: true},
	}

	o.persist(context.Background(), req, result, "full body", agentResults)

	require.Len(t, drafts.drafts, 1)
	draft := drafts.drafts[0]
	assert.Equal(t, "draft-1", draft.ID)
	assert.Equal(t, "full body", draft.Body)
	assert.InDelta(t, 0.0105, draft.CostUSD, 1e-9)
	require.Len(t, audits.rows, 1)

	require.Len(t, stream.events, 1)
	event := stream.events[0]
	assert.Equal(t, "content_generated", event.Action)
	assert.Equal(t, "draft", event.ResourceType)
	assert.Equal(t, "draft-1", event.ResourceID)
	assert.Equal(t, "u-1", event.UserID)
	assert.Equal(t, 55, event.Metadata["trust_score"])
	assert.Equal(t, true, event.Metadata["blocked"])
	assert.Equal(t, string(entity.ResultStatusReview), event.Metadata["status"])
}

func TestPersistWithoutAuditStream(t *testing.T) {
	drafts := &fakeDraftRepo{}
	o := &Orchestrator{
		cfg:    &config.Config{},
		drafts: drafts,
		audits: &fakeAuditRepo{},
	}

	req := &entity.GenerationRequest{Mode: entity.ModeGeneral, ContentType: entity.ContentTypeArticleLong}
	result := &entity.GenerationResult{ID: "draft-2", Status: entity.ResultStatusDraft, CreatedAt: time.Now().UTC()}

	o.persist(context.Background(), req, result, "body", nil)

	require.Len(t, drafts.drafts, 1)
}
