// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"compligen-api/internal/domain/entity"
)

// DraftRepository 草稿仓储实现
type DraftRepository struct {
	client *Client
}

// NewDraftRepository 创建草稿仓储
func NewDraftRepository(client *Client) *DraftRepository {
	return &DraftRepository{client: client}
}

// Create 写入草稿记录
func (r *DraftRepository) Create(ctx context.Context, draft *entity.Draft) error {
	ctx, span := tracer.Start(ctx, "postgres.DraftRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(draft).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

// GetByID 查询草稿
func (r *DraftRepository) GetByID(ctx context.Context, id string) (*entity.Draft, error) {
	ctx, span := tracer.Start(ctx, "postgres.DraftRepository.GetByID")
	defer span.End()

	var draft entity.Draft
	if err := r.client.db.WithContext(ctx).First(&draft, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return &draft, nil
}
