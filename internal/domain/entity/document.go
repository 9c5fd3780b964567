package entity

import "time"

// DocumentScope 文档归属范围
type DocumentScope string

const (
	// ScopePrivate 私有 SOP/合规文档，绝不混入公共检索
	ScopePrivate DocumentScope = "private"
	// ScopePublic 公共采集文档
	ScopePublic DocumentScope = "public"
)

// Document 候选证据文档
type Document struct {
	ID          string        `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Title       string        `json:"title" gorm:"type:varchar(512)"`
	URL         string        `json:"url" gorm:"type:varchar(2048);uniqueIndex"`
	Content     string        `json:"content" gorm:"type:text"`
	Source      string        `json:"source" gorm:"type:varchar(128)"`
	Scope       DocumentScope `json:"scope" gorm:"type:varchar(16);index"`
	PublishedAt *time.Time    `json:"published_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TableName GORM 表名
func (Document) TableName() string {
	return "documents"
}
