package repository

import (
	"context"

	"compligen-api/internal/domain/entity"
)

// DocumentRepository 文档仓储端口
type DocumentRepository interface {
	// SearchKeyword 关键词子串检索（通配符已转义）
	SearchKeyword(ctx context.Context, scope entity.DocumentScope, keyword string, limit int) ([]*entity.Document, error)
	// UpsertBatch 按 URL 去重写入采集文档
	UpsertBatch(ctx context.Context, docs []*entity.Document) (int, error)
}
