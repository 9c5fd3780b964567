package postgres

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compligen-api/internal/domain/entity"
)

// DocumentRepository 文档仓储实现
type DocumentRepository struct {
	client *Client
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(client *Client) *DocumentRepository {
	return &DocumentRepository{client: client}
}

// escapeLike 转义 LIKE 通配符，避免关键词被解释为模式
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

// SearchKeyword 关键词子串检索
func (r *DocumentRepository) SearchKeyword(ctx context.Context, scope entity.DocumentScope, keyword string, limit int) ([]*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.SearchKeyword",
		trace.WithAttributes(attribute.String("scope", string(scope))))
	defer span.End()

	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 8
	}

	pattern := "%" + escapeLike(keyword) + "%"
	var docs []*entity.Document
	err := r.client.db.WithContext(ctx).
		Where("scope = ?", scope).
		Where("title ILIKE ? OR content ILIKE ?", pattern, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(docs)))
	return docs, nil
}

// UpsertBatch 按 URL 去重写入采集文档
func (r *DocumentRepository) UpsertBatch(ctx context.Context, docs []*entity.Document) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.UpsertBatch",
		trace.WithAttributes(attribute.Int("doc_count", len(docs))))
	defer span.End()

	if len(docs) == 0 {
		return 0, nil
	}

	result := r.client.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "content", "source"}),
		}).
		Create(&docs)
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to upsert documents: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Migrate 创建表结构（bootstrap 用）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Document{},
		&entity.Draft{},
		&entity.ValidationAudit{},
	)
}
