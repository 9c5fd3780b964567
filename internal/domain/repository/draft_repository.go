// Package repository 提供持久化端口定义
package repository

import (
	"context"

	"compligen-api/internal/domain/entity"
)

// DraftRepository 草稿仓储端口
type DraftRepository interface {
	// Create 写入草稿记录
	Create(ctx context.Context, draft *entity.Draft) error
	// GetByID 查询草稿
	GetByID(ctx context.Context, id string) (*entity.Draft, error)
}

// AuditRepository 校验审计仓储端口
type AuditRepository interface {
	// CreateBatch 写入一次校验的全部 Agent 审计行
	CreateBatch(ctx context.Context, audits []*entity.ValidationAudit) error
	// ListByDraft 查询草稿的审计记录
	ListByDraft(ctx context.Context, draftID string) ([]*entity.ValidationAudit, error)
}
