package postgres

import (
	"context"
	"fmt"

	"compligen-api/internal/domain/entity"
)

// AuditRepository 校验审计仓储实现
type AuditRepository struct {
	client *Client
}

// NewAuditRepository 创建审计仓储
func NewAuditRepository(client *Client) *AuditRepository {
	return &AuditRepository{client: client}
}

// CreateBatch 写入一次校验的全部 Agent 审计行
func (r *AuditRepository) CreateBatch(ctx context.Context, audits []*entity.ValidationAudit) error {
	ctx, span := tracer.Start(ctx, "postgres.AuditRepository.CreateBatch")
	defer span.End()

	if len(audits) == 0 {
		return nil
	}
	if err := r.client.db.WithContext(ctx).Create(&audits).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create audit rows: %w", err)
	}
	return nil
}

// ListByDraft 查询草稿的审计记录
func (r *AuditRepository) ListByDraft(ctx context.Context, draftID string) ([]*entity.ValidationAudit, error) {
	ctx, span := tracer.Start(ctx, "postgres.AuditRepository.ListByDraft")
	defer span.End()

	var audits []*entity.ValidationAudit
	err := r.client.db.WithContext(ctx).
		Where("draft_id = ?", draftID).
		Order("created_at ASC").
		Find(&audits).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list audit rows: %w", err)
	}
	return audits, nil
}
