package evidence

import (
	"context"
	"strconv"

	"compligen-api/internal/domain/entity"
	"compligen-api/internal/infrastructure/embedding"
	"compligen-api/internal/infrastructure/persistence/milvus"
)

// IndexSearcher 向量索引查询端口
type IndexSearcher interface {
	Search(ctx context.Context, scope string, query string, topK int) ([]*entity.EvidenceChunk, error)
}

// MilvusIndexSearcher 基于 Embedding + Milvus 的向量索引实现
type MilvusIndexSearcher struct {
	embedder *embedding.Service
	repo     *milvus.Repository
}

// NewMilvusIndexSearcher 创建向量索引查询器
func NewMilvusIndexSearcher(embedder *embedding.Service, repo *milvus.Repository) *MilvusIndexSearcher {
	return &MilvusIndexSearcher{embedder: embedder, repo: repo}
}

// Search 将查询向量化后在指定 scope 内检索证据块
func (s *MilvusIndexSearcher) Search(ctx context.Context, scope string, query string, topK int) ([]*entity.EvidenceChunk, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.repo.SearchChunks(ctx, &milvus.SearchParams{
		Scope:       scope,
		QueryVector: vector,
		TopK:        topK,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]*entity.EvidenceChunk, 0, len(results))
	for _, r := range results {
		chunk := &entity.EvidenceChunk{
			Content: r.TextContent,
			Metadata: map[string]string{
				"title":  r.Title,
				"url":    r.URL,
				"source": r.Source,
			},
		}
		if r.PublishedAt > 0 {
			chunk.Metadata["published_at"] = strconv.FormatInt(r.PublishedAt, 10)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
